package domains

import (
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

func userAccountColumns(email string) []schema.ColumnSpec {
	return []schema.ColumnSpec{
		id("principal_id"),
		str("first_name", 64),
		str("last_name", 64),
		nullable(str(email, 255)),
		str("password_hash", 128),
		withDefault(typed("user_level", schema.TypeInt), "0"),
		created(),
	}
}

func userAccountUnits() []migration.Unit {
	v1 := unit(UserAccounts, "0.0.1", "create_user_accounts",
		table("user_accounts", userAccountColumns("email"),
			primary("principal_id"), unique("first_name", "last_name")),
	)

	v2 := unit(UserAccounts, "0.0.2", "rename_email",
		table("user_accounts", userAccountColumns("email_address"),
			primary("principal_id"), unique("first_name", "last_name")),
	)
	v2.Renames = []migration.ColumnRename{{Table: "user_accounts", From: "email", To: "email_address"}}

	return []migration.Unit{v1, v2}
}
