package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
)

// AlterColumnTypeRule detects ALTER COLUMN TYPE on a populated table, which
// rewrites every row.
type AlterColumnTypeRule struct{}

// NewAlterColumnTypeRule creates a new AlterColumnTypeRule.
func NewAlterColumnTypeRule() *AlterColumnTypeRule { return &AlterColumnTypeRule{} }

// ID returns the rule identifier.
func (r *AlterColumnTypeRule) ID() string { return "alter-column-type" }

// Check examines a statement for ALTER COLUMN TYPE.
func (r *AlterColumnTypeRule) Check(stmt *pg_query.RawStmt, ctx *analyzer.RuleContext) []analyzer.Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_AlterTableStmt)
	if !ok {
		return nil
	}

	alt := node.AlterTableStmt
	if ctx.IsNew(alt.Relation.GetRelname()) {
		return nil
	}

	var findings []analyzer.Finding

	for _, cmdNode := range alt.Cmds {
		cmd := cmdNode.GetAlterTableCmd()
		if cmd == nil || cmd.Subtype != pg_query.AlterTableType_AT_AlterColumnType {
			continue
		}

		findings = append(findings, analyzer.Finding{
			Rule:       r.ID(),
			Severity:   analyzer.High,
			Table:      analyzer.TableName(alt.Relation),
			Message:    "ALTER COLUMN " + cmd.Name + " TYPE rewrites the table while holding an ACCESS EXCLUSIVE lock",
			Suggestion: "Declare a new column in the next unit, backfill it, and retire the old one with a rename",
			LockType:   "ACCESS EXCLUSIVE",
			StmtIndex:  ctx.StmtIndex,
		})
	}

	return findings
}
