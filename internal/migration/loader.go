package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

// filenamePattern matches declaration files such as V0.0.4_add_schedule_for.yml.
// The enclosing directory names the domain.
var filenamePattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, used by LoadFromDir
	`^V(\d+)\.(\d+)\.(\d+)_(.+)\.ya?ml$`,
)

// unitFile is the on-disk YAML representation of a unit.
type unitFile struct {
	Name    string       `yaml:"name"`
	Tables  []tableFile  `yaml:"tables"`
	Renames []renameFile `yaml:"renames"`
	Remove  []string     `yaml:"remove"`
}

type tableFile struct {
	Name    string       `yaml:"name"`
	Columns []columnFile `yaml:"columns"`
	Indexes []indexFile  `yaml:"indexes"`
}

type columnFile struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Length   int    `yaml:"length"`
	Nullable bool   `yaml:"nullable"`
	Default  string `yaml:"default"`
}

type indexFile struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Columns []string `yaml:"columns"`
}

type renameFile struct {
	Table string `yaml:"table"`
	From  string `yaml:"from"`
	To    string `yaml:"to"`
}

// LoadFromDir reads <dir>/<Domain>/V<major>.<minor>.<patch>_<name>.yml files
// and returns them as unsorted units. Files that do not match the naming
// pattern are skipped. The units are not registered.
func LoadFromDir(dir string) ([]Unit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory %s: %w", dir, err)
	}

	var units []Unit

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		domainUnits, err := loadDomainDir(filepath.Join(dir, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}

		units = append(units, domainUnits...)
	}

	return units, nil
}

func loadDomainDir(dir, domain string) ([]Unit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading domain directory %s: %w", dir, err)
	}

	var units []Unit

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := filenamePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}

		u, err := readUnit(filepath.Join(dir, entry.Name()), domain, matches)
		if err != nil {
			return nil, err
		}

		units = append(units, u)
	}

	return units, nil
}

// readUnit parses one declaration file. matches holds the filename pattern groups.
func readUnit(path, domain string, matches []string) (Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Unit{}, fmt.Errorf("reading migration file %s: %w", path, err)
	}

	var raw unitFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Unit{}, fmt.Errorf("parsing migration file %s: %w", path, err)
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])
	patch, _ := strconv.Atoi(matches[3])

	u := Unit{
		Domain:   domain,
		Version:  Version{Major: major, Minor: minor, Patch: patch},
		Name:     matches[4],
		Removals: raw.Remove,
		Checksum: ComputeChecksum(string(data)),
		Source:   path,
	}

	if raw.Name != "" {
		u.Name = raw.Name
	}

	for _, r := range raw.Renames {
		u.Renames = append(u.Renames, ColumnRename(r))
	}

	for _, tf := range raw.Tables {
		t, err := tf.toSpec()
		if err != nil {
			return Unit{}, fmt.Errorf("migration file %s: %w", path, err)
		}

		u.Tables = append(u.Tables, t)
	}

	return u, nil
}

func (tf tableFile) toSpec() (schema.TableSpec, error) {
	t := schema.TableSpec{Name: tf.Name}

	for _, cf := range tf.Columns {
		typ, err := schema.ParseType(cf.Type)
		if err != nil {
			return schema.TableSpec{}, fmt.Errorf("table %s column %s: %w", tf.Name, cf.Name, err)
		}

		t.Columns = append(t.Columns, schema.ColumnSpec{
			Name:     cf.Name,
			Type:     typ,
			Length:   cf.Length,
			Nullable: cf.Nullable,
			Default:  cf.Default,
		})
	}

	for _, ix := range tf.Indexes {
		kind, err := schema.ParseIndexKind(ix.Kind)
		if err != nil {
			return schema.TableSpec{}, fmt.Errorf("table %s: %w", tf.Name, err)
		}

		t.Indexes = append(t.Indexes, schema.IndexSpec{Name: ix.Name, Kind: kind, Columns: ix.Columns})
	}

	return t, nil
}
