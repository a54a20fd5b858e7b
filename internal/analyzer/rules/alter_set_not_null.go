package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
)

const pgVersionSafeSetNotNull = 12

// SetNotNullRule detects SET NOT NULL, which scans the whole table under lock.
type SetNotNullRule struct{}

// NewSetNotNullRule creates a new SetNotNullRule.
func NewSetNotNullRule() *SetNotNullRule { return &SetNotNullRule{} }

// ID returns the rule identifier.
func (r *SetNotNullRule) ID() string { return "set-not-null" }

// Check examines a statement for SET NOT NULL.
func (r *SetNotNullRule) Check(stmt *pg_query.RawStmt, ctx *analyzer.RuleContext) []analyzer.Finding {
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
		if cmd == nil || cmd.Subtype != pg_query.AlterTableType_AT_SetNotNull {
			continue
		}

		severity := analyzer.High
		suggestion := "Requires a full table scan. Keep the column nullable until existing rows are backfilled."

		if ctx.TargetPGVersion >= pgVersionSafeSetNotNull {
			severity = analyzer.Medium
			suggestion = "First add CHECK (col IS NOT NULL) NOT VALID, then VALIDATE CONSTRAINT, then SET NOT NULL"
		}

		findings = append(findings, analyzer.Finding{
			Rule:       r.ID(),
			Severity:   severity,
			Table:      analyzer.TableName(alt.Relation),
			Message:    "SET NOT NULL on " + cmd.Name + " scans the table to verify no NULL values exist",
			Suggestion: suggestion,
			LockType:   "ACCESS EXCLUSIVE",
			StmtIndex:  ctx.StmtIndex,
		})
	}

	return findings
}
