package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/config"
	"github.com/aqasim81/domain-migration-engine/internal/domains"
)

func TestRunPlan_listsPendingUnits(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setupTestConfig(t, nil)

	out, err := runCmd(t, runPlan, addPlanFlags, map[string]string{"domain": domains.Scheduler})
	require.NoError(t, err)

	assert.Contains(t, out, "Scheduler@0.0.1 (create_scheduler)")
	assert.Contains(t, out, "[applying] create table scheduler")
	assert.Contains(t, out, "Scheduler@0.0.4 (add_schedule_for)")
	assert.Contains(t, out, "4 pending unit(s).")
	assert.NotContains(t, out, "CREATE TABLE", "SQL is shown only on request off PostgreSQL")
}

func TestRunPlan_showsSQL(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setupTestConfig(t, nil)

	out, err := runCmd(t, runPlan, addPlanFlags, map[string]string{"domain": domains.Asset, "sql": "true"})
	require.NoError(t, err)

	assert.Contains(t, out, `CREATE TABLE "assets"`)
	assert.Contains(t, out, `DROP TABLE IF EXISTS "assetblob";`)
}

func TestRunPlan_jsonFormat(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setupTestConfig(t, func(c *config.Config) { c.Format = formatJSON })

	out, err := runCmd(t, runPlan, addPlanFlags, map[string]string{"domain": domains.Asset})
	require.NoError(t, err)

	var units []unitPlanJSON
	require.NoError(t, json.Unmarshal([]byte(out), &units))
	require.Len(t, units, 2)
	assert.Equal(t, "0.0.1", units[0].Version)
	assert.Equal(t, "removing", units[1].Steps[0].Phase)
	assert.Equal(t, "drop table", units[1].Steps[0].Action)
	assert.Equal(t, "assetblob", units[1].Steps[0].Table)
}

func TestRunPlan_upToDate(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	useSQLite(t)

	_, err := runCmd(t, runApply, addApplyFlags, nil)
	require.NoError(t, err)

	out, err := runCmd(t, runPlan, addPlanFlags, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Every domain is up to date.")
}
