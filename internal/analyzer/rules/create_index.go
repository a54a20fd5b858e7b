package rules

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
)

// CreateIndexRule flags index builds on tables that already hold rows when
// the build is not CONCURRENTLY.
type CreateIndexRule struct{}

// NewCreateIndexRule creates a new CreateIndexRule.
func NewCreateIndexRule() *CreateIndexRule { return &CreateIndexRule{} }

// ID returns the rule identifier.
func (r *CreateIndexRule) ID() string { return "create-index-not-concurrent" }

// Check examines a statement for a blocking CREATE INDEX.
func (r *CreateIndexRule) Check(stmt *pg_query.RawStmt, ctx *analyzer.RuleContext) []analyzer.Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_IndexStmt)
	if !ok {
		return nil
	}

	idx := node.IndexStmt
	if idx.Concurrent || ctx.IsNew(idx.Relation.GetRelname()) {
		return nil
	}

	kind := "index"
	if idx.Unique {
		kind = "unique index"
	}

	return []analyzer.Finding{{
		Rule:       r.ID(),
		Severity:   analyzer.High,
		Table:      analyzer.TableName(idx.Relation),
		Message:    fmt.Sprintf("building %s %s without CONCURRENTLY blocks writes until it finishes", kind, idx.Idxname),
		Suggestion: "Set concurrent_indexes: true so secondary indexes are built with CONCURRENTLY",
		LockType:   "SHARE",
		StmtIndex:  ctx.StmtIndex,
	}}
}
