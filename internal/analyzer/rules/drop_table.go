package rules

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
)

// DropTableRule detects DROP TABLE of a table a unit retires. The rows are
// recoverable from the backup copy only until the unit commits.
type DropTableRule struct{}

// NewDropTableRule creates a new DropTableRule.
func NewDropTableRule() *DropTableRule { return &DropTableRule{} }

// ID returns the rule identifier.
func (r *DropTableRule) ID() string { return "drop-table" }

// Check examines a statement for DROP TABLE.
func (r *DropTableRule) Check(stmt *pg_query.RawStmt, ctx *analyzer.RuleContext) []analyzer.Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_DropStmt)
	if !ok {
		return nil
	}

	drop := node.DropStmt
	if drop == nil || drop.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
		return nil
	}

	return []analyzer.Finding{{
		Rule:       r.ID(),
		Severity:   analyzer.Critical,
		Table:      strings.Join(dropTableNames(drop), ", "),
		Message:    "DROP TABLE permanently deletes all rows once the unit commits",
		Suggestion: "Confirm no service still reads the table and take an external backup if the data matters",
		LockType:   "ACCESS EXCLUSIVE",
		StmtIndex:  ctx.StmtIndex,
	}}
}

func dropTableNames(drop *pg_query.DropStmt) []string {
	var tables []string

	for _, obj := range drop.Objects {
		list := obj.GetList()
		if list == nil {
			continue
		}

		var parts []string

		for _, item := range list.Items {
			if s := item.GetString_(); s != nil {
				parts = append(parts, s.Sval)
			}
		}

		if len(parts) > 0 {
			tables = append(tables, strings.Join(parts, "."))
		}
	}

	return tables
}
