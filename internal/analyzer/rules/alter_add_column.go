package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
)

const pgVersionSafeNonVolatileDefault = 11

// AddColumnRule detects ADD COLUMN that rewrites a populated table or
// cannot be applied to it at all.
type AddColumnRule struct{}

// NewAddColumnRule creates a new AddColumnRule.
func NewAddColumnRule() *AddColumnRule { return &AddColumnRule{} }

// ID returns the rule identifier.
func (r *AddColumnRule) ID() string { return "add-column-volatile-default" }

// Check examines a statement for ADD COLUMN with a volatile or missing DEFAULT.
func (r *AddColumnRule) Check(stmt *pg_query.RawStmt, ctx *analyzer.RuleContext) []analyzer.Finding {
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
		if !ok {
			continue
		}

		if cmd.AlterTableCmd.Subtype != pg_query.AlterTableType_AT_AddColumn {
			continue
		}

		finding := r.checkAddColumn(cmd.AlterTableCmd, alt.Relation, ctx)
		if finding != nil {
			findings = append(findings, *finding)
		}
	}

	return findings
}

func (r *AddColumnRule) checkAddColumn(
	cmd *pg_query.AlterTableCmd,
	relation *pg_query.RangeVar,
	ctx *analyzer.RuleContext,
) *analyzer.Finding {
	colDef := cmd.Def.GetColumnDef()
	if colDef == nil {
		return nil
	}

	defaultExpr := findConstraint(colDef, pg_query.ConstrType_CONSTR_DEFAULT).GetRawExpr()

	if defaultExpr == nil {
		if findConstraint(colDef, pg_query.ConstrType_CONSTR_NOTNULL) == nil {
			return nil // nullable, no DEFAULT: metadata-only
		}

		return &analyzer.Finding{
			Rule:       r.ID(),
			Severity:   analyzer.High,
			Table:      analyzer.TableName(relation),
			Message:    "ADD COLUMN NOT NULL without DEFAULT fails on a table that already has rows",
			Suggestion: "Declare a default for " + colDef.Colname + " or make it nullable",
			LockType:   "ACCESS EXCLUSIVE",
			StmtIndex:  ctx.StmtIndex,
		}
	}

	if ctx.TargetPGVersion >= pgVersionSafeNonVolatileDefault && !isVolatileDefault(defaultExpr) {
		return nil // PG 11+ stores a non-volatile default in the catalog
	}

	msg := "ADD COLUMN with volatile DEFAULT rewrites the entire table"
	if ctx.TargetPGVersion < pgVersionSafeNonVolatileDefault {
		msg = "ADD COLUMN with DEFAULT rewrites the entire table on PG < 11"
	}

	return &analyzer.Finding{
		Rule:       r.ID(),
		Severity:   analyzer.High,
		Table:      analyzer.TableName(relation),
		Message:    msg,
		Suggestion: "Declare a constant default, or add the column nullable and backfill in batches",
		LockType:   "ACCESS EXCLUSIVE",
		StmtIndex:  ctx.StmtIndex,
	}
}

// findConstraint returns the column constraint of the given type, or nil.
// In pg_query_go v6, DEFAULT and NOT NULL are stored as constraints in the
// ColumnDef's Constraints list.
func findConstraint(colDef *pg_query.ColumnDef, typ pg_query.ConstrType) *pg_query.Constraint {
	for _, c := range colDef.Constraints {
		if cn := c.GetConstraint(); cn != nil && cn.Contype == typ {
			return cn
		}
	}

	return nil
}

// isVolatileDefault determines whether a DEFAULT expression is volatile.
// Constants and type casts of constants are non-volatile; everything else
// (including CURRENT_TIMESTAMP and function calls) is assumed volatile.
func isVolatileDefault(node *pg_query.Node) bool {
	if node == nil {
		return false
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_AConst:
		return false
	case *pg_query.Node_TypeCast:
		if n.TypeCast.Arg != nil {
			if _, ok := n.TypeCast.Arg.Node.(*pg_query.Node_AConst); ok {
				return false
			}
		}

		return true
	default:
		return true
	}
}
