package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
)

// RenameRule detects column and table renames, which break readers still
// using the old name.
type RenameRule struct{}

// NewRenameRule creates a new RenameRule.
func NewRenameRule() *RenameRule { return &RenameRule{} }

// ID returns the rule identifier.
func (r *RenameRule) ID() string { return "rename" }

// Check examines a statement for RENAME TABLE or RENAME COLUMN.
func (r *RenameRule) Check(stmt *pg_query.RawStmt, ctx *analyzer.RuleContext) []analyzer.Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_RenameStmt)
	if !ok {
		return nil
	}

	rename := node.RenameStmt
	if rename == nil {
		return nil
	}

	var msg string

	switch rename.RenameType {
	case pg_query.ObjectType_OBJECT_COLUMN:
		msg = "RENAME COLUMN " + rename.Subname + " breaks readers that still use the old name"
	case pg_query.ObjectType_OBJECT_TABLE:
		msg = "RENAME TABLE breaks readers that still use the old name"
	default:
		return nil // RENAME INDEX and the like are metadata-only
	}

	return []analyzer.Finding{{
		Rule:       r.ID(),
		Severity:   analyzer.Medium,
		Table:      analyzer.TableName(rename.Relation),
		Message:    msg,
		Suggestion: "Deploy readers that accept both names before applying the unit",
		LockType:   "ACCESS EXCLUSIVE",
		StmtIndex:  ctx.StmtIndex,
	}}
}
