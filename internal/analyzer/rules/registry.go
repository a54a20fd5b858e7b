package rules

import "github.com/aqasim81/domain-migration-engine/internal/analyzer"

// All returns one instance of every built-in rule. Findings for a
// statement are reported in this order.
func All() []analyzer.Rule {
	return []analyzer.Rule{
		NewCreateIndexRule(),
		NewAddColumnRule(),
		NewAddPrimaryKeyRule(),
		NewAlterColumnTypeRule(),
		NewSetNotNullRule(),
		NewDropTableRule(),
		NewRenameRule(),
	}
}

// NewDefaultRegistry returns a Registry with all built-in detection rules.
func NewDefaultRegistry() *analyzer.Registry {
	return analyzer.NewRegistry(All()...)
}
