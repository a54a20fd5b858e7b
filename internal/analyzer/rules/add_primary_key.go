package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
)

// AddPrimaryKeyRule detects ADD CONSTRAINT ... PRIMARY KEY that builds its
// index while holding an ACCESS EXCLUSIVE lock.
type AddPrimaryKeyRule struct{}

// NewAddPrimaryKeyRule creates a new AddPrimaryKeyRule.
func NewAddPrimaryKeyRule() *AddPrimaryKeyRule { return &AddPrimaryKeyRule{} }

// ID returns the rule identifier.
func (r *AddPrimaryKeyRule) ID() string { return "add-primary-key" }

// Check examines a statement for a primary key added to a populated table.
func (r *AddPrimaryKeyRule) Check(stmt *pg_query.RawStmt, ctx *analyzer.RuleContext) []analyzer.Finding {
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
		cmd, ok := cmdNode.Node.(*pg_query.Node_AlterTableCmd)
		if !ok || cmd.AlterTableCmd.Subtype != pg_query.AlterTableType_AT_AddConstraint {
			continue
		}

		constraint := cmd.AlterTableCmd.Def.GetConstraint()
		if constraint == nil || constraint.Contype != pg_query.ConstrType_CONSTR_PRIMARY {
			continue
		}

		if constraint.Indexname != "" {
			continue // USING INDEX attaches an index built beforehand
		}

		findings = append(findings, analyzer.Finding{
			Rule:       r.ID(),
			Severity:   analyzer.High,
			Table:      analyzer.TableName(alt.Relation),
			Message:    "ADD PRIMARY KEY builds its index while holding an ACCESS EXCLUSIVE lock",
			Suggestion: "Build a unique index CONCURRENTLY first, then ADD CONSTRAINT ... PRIMARY KEY USING INDEX",
			LockType:   "ACCESS EXCLUSIVE",
			StmtIndex:  ctx.StmtIndex,
		})
	}

	return findings
}
