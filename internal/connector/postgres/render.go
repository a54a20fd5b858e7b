package postgres

import (
	"github.com/aqasim81/domain-migration-engine/internal/plan"
)

// Render returns the statements the connector would execute for a step. A
// dropped index is rendered as DROP INDEX unless the step names a primary key.
func Render(step plan.Step, concurrent bool) []string {
	switch step.Action {
	case plan.RenameColumn:
		return []string{RenameColumnSQL(step.Table, step.From, step.To)}
	case plan.CreateTable:
		return CreateTableSQL(step.Spec)
	case plan.AddColumn:
		return []string{AddColumnSQL(step.Table, step.Column)}
	case plan.AlterColumn:
		return []string{AlterColumnSQL(step.Table, step.Column)}
	case plan.DropIndex:
		return []string{DropIndexSQL(step.Table, step.Index)}
	case plan.CreateIndex:
		return []string{CreateIndexSQL(step.Table, step.Index, concurrent)}
	case plan.DropTable:
		return []string{DropTableSQL(step.Table)}
	default:
		return nil
	}
}

// RenderAll renders every step in order.
func RenderAll(steps []plan.Step, concurrent bool) []string {
	var out []string
	for _, s := range steps {
		out = append(out, Render(s, concurrent)...)
	}

	return out
}
