package domains

import (
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

func assetColumns() []schema.ColumnSpec {
	return []schema.ColumnSpec{
		id("id"),
		id("creator_id"),
		str("name", 64),
		nullable(str("description", 255)),
		withDefault(typed("asset_type", schema.TypeTinyInt), "0"),
		withDefault(typed("local", schema.TypeBool), "0"),
		withDefault(typed("temporary", schema.TypeBool), "0"),
		withDefault(typed("asset_flags", schema.TypeInt), "0"),
		created(),
		nullable(typed("access_time", schema.TypeTimestamp)),
		nullable(typed("data", schema.TypeBinary)),
	}
}

func assetUnits() []migration.Unit {
	v1 := unit(Asset, "0.0.1", "create_assets",
		table("assets", assetColumns(), primary("id"), index("creator_id")),
		table("assetblob", []schema.ColumnSpec{id("asset_id"), typed("data", schema.TypeBinary)}, primary("asset_id")),
	)

	// Blob content moved inline into assets.data.
	v2 := unit(Asset, "0.0.2", "drop_assetblob")
	v2.Removals = []string{"assetblob"}

	return []migration.Unit{v1, v2}
}
