package tracker

import (
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/parser"
)

func parseOne(t *testing.T, sql string) *pg_query.Node {
	t.Helper()

	result, err := parser.Parse(sql)
	require.NoError(t, err)
	require.Len(t, result.Stmts, 1)

	return result.Stmts[0].Stmt
}

func TestStatements_parse(t *testing.T) {
	t.Parallel()

	for name, sql := range map[string]string{
		"create": createSchemaSQL,
		"get":    getVersionSQL,
		"list":   listVersionsSQL,
		"set":    setVersionSQL,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			parseOne(t, sql)
		})
	}
}

func TestSetVersionSQL_guardsAgainstRegression(t *testing.T) {
	t.Parallel()

	insert := parseOne(t, setVersionSQL).GetInsertStmt()
	require.NotNil(t, insert)

	conflict := insert.OnConflictClause
	require.NotNil(t, conflict)
	assert.Equal(t, pg_query.OnConflictAction_ONCONFLICT_UPDATE, conflict.Action)

	var updated []string
	for _, n := range conflict.TargetList {
		updated = append(updated, n.GetResTarget().Name)
	}

	assert.Equal(t, []string{"major", "minor", "patch", "applied_at"}, updated)

	where := conflict.WhereClause.GetAExpr()
	require.NotNil(t, where, "the update must be conditional")
	require.Len(t, where.Name, 1)
	assert.Equal(t, "<=", where.Name[0].GetString_().Sval, "stored version may only move forward")
	assert.Len(t, where.Lexpr.GetRowExpr().Args, 3)
	assert.Len(t, where.Rexpr.GetRowExpr().Args, 3)
}

func TestSetVersionSQL_insertsEveryVersionColumn(t *testing.T) {
	t.Parallel()

	create := parseOne(t, createSchemaSQL).GetCreateStmt()
	require.NotNil(t, create)

	var declared []string
	for _, n := range create.TableElts {
		declared = append(declared, n.GetColumnDef().Colname)
	}

	insert := parseOne(t, setVersionSQL).GetInsertStmt()

	var inserted []string
	for _, n := range insert.Cols {
		inserted = append(inserted, n.GetResTarget().Name)
	}

	// applied_at is filled by its default.
	assert.Equal(t, declared[:len(declared)-1], inserted)
	assert.Equal(t, "applied_at", declared[len(declared)-1])
}
