// Package parser wraps pg_query so rendered PostgreSQL DDL can be inspected
// as an AST before it is executed.
package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ParseResult holds the parsed AST and original SQL.
type ParseResult struct {
	Stmts []*pg_query.RawStmt
	SQL   string
}

// Parse parses a PostgreSQL SQL string and returns the AST.
// Returns an empty result (zero statements) for empty or whitespace-only input.
func Parse(sql string) (*ParseResult, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &ParseResult{SQL: sql}, nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	return &ParseResult{
		Stmts: tree.Stmts,
		SQL:   sql,
	}, nil
}

// Script joins single statements into one script, each terminated by a semicolon.
func Script(stmts []string) string {
	var b strings.Builder

	for _, s := range stmts {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
		if s == "" {
			continue
		}

		b.WriteString(s)
		b.WriteString(";\n")
	}

	return b.String()
}

// ParseStatements parses a list of single statements as one script.
func ParseStatements(stmts []string) (*ParseResult, error) {
	return Parse(Script(stmts))
}

// Relation returns the table a statement targets, or "" when it has none.
func Relation(stmt *pg_query.RawStmt) string {
	if stmt == nil || stmt.Stmt == nil {
		return ""
	}

	var rv *pg_query.RangeVar

	switch n := stmt.Stmt.Node.(type) {
	case *pg_query.Node_CreateStmt:
		rv = n.CreateStmt.Relation
	case *pg_query.Node_AlterTableStmt:
		rv = n.AlterTableStmt.Relation
	case *pg_query.Node_IndexStmt:
		rv = n.IndexStmt.Relation
	case *pg_query.Node_RenameStmt:
		rv = n.RenameStmt.Relation
	}

	if rv == nil {
		return ""
	}

	return rv.Relname
}
