package domains

import (
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

func statsUnits() []migration.Unit {
	return []migration.Unit{
		unit(Stats, "0.0.1", "create_stats",
			table("stats", []schema.ColumnSpec{
				id("region_id"),
				typed("sampled_at", schema.TypeTimestamp),
				withDefault(typed("agents", schema.TypeSmallInt), "0"),
				withDefault(typed("prims", schema.TypeInt), "0"),
				withDefault(typed("bytes_in", schema.TypeBigInt), "0"),
				withDefault(typed("bytes_out", schema.TypeBigInt), "0"),
			}, primary("region_id", "sampled_at")),
		),
	}
}
