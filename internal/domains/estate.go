package domains

import (
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

func estateUnits() []migration.Unit {
	settings := []schema.ColumnSpec{
		id("estate_id"),
		str("name", 64),
		id("owner_id"),
		withDefault(typed("access_flags", schema.TypeInt), "0"),
		withDefault(typed("public_access", schema.TypeBool), "1"),
		created(),
	}

	members := []schema.ColumnSpec{
		id("estate_id"),
		id("user_id"),
		withDefault(typed("role", schema.TypeTinyInt), "0"),
	}

	managers := append(append([]schema.ColumnSpec(nil), members[:2]...), created())

	return []migration.Unit{
		unit(Estate, "0.0.1", "create_estates",
			table("estate_settings", settings, primary("estate_id"), index("owner_id")),
			table("estate_users", members, primary("estate_id", "user_id")),
		),
		unit(Estate, "0.0.2", "add_estate_managers",
			table("estate_managers", managers, primary("estate_id", "user_id"), index("user_id")),
		),
	}
}
