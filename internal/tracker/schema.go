package tracker

// createSchemaSQL is the DDL for the per-domain version table.
const createSchemaSQL = `CREATE TABLE IF NOT EXISTS domain_versions (
    domain       TEXT PRIMARY KEY,
    major        INTEGER NOT NULL,
    minor        INTEGER NOT NULL,
    patch        INTEGER NOT NULL,
    applied_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const getVersionSQL = `SELECT major, minor, patch FROM domain_versions WHERE domain = $1`

const listVersionsSQL = `SELECT domain, major, minor, patch, applied_at
 FROM domain_versions
 ORDER BY domain`

// setVersionSQL upserts a domain's version. The conflict update only fires
// when the stored version is not higher, so a regression affects no rows.
const setVersionSQL = `INSERT INTO domain_versions (domain, major, minor, patch)
 VALUES ($1, $2, $3, $4)
 ON CONFLICT (domain) DO UPDATE SET
     major = EXCLUDED.major,
     minor = EXCLUDED.minor,
     patch = EXCLUDED.patch,
     applied_at = NOW()
 WHERE (domain_versions.major, domain_versions.minor, domain_versions.patch)
    <= (EXCLUDED.major, EXCLUDED.minor, EXCLUDED.patch)`
