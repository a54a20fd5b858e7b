package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

// ColumnRename reconciles a legacy column name to its current name.
type ColumnRename struct {
	Table string
	From  string
	To    string
}

// Unit is one versioned, declarative schema change for a domain.
type Unit struct {
	Domain   string
	Version  Version
	Name     string              // "create_assets"
	Tables   []schema.TableSpec  // tables that must exist with the declared shape
	Renames  []ColumnRename      // applied before tables are created or validated
	Removals []string            // tables to drop entirely
	Checksum string              // SHA-256 hex digest of the declaration
	Source   string              // file the unit was loaded from; empty when compiled in
}

// ID returns "Domain@major.minor.patch".
func (u *Unit) ID() string {
	return u.Domain + "@" + u.Version.String()
}

// Validate checks the unit for internal consistency.
func (u *Unit) Validate() error {
	if strings.TrimSpace(u.Domain) == "" {
		return fmt.Errorf("%w: unit %q has no domain", ErrInvalidUnit, u.Name)
	}

	if u.Version.IsZero() {
		return fmt.Errorf("%w: unit %s has version 0.0.0", ErrInvalidVersion, u.ID())
	}

	names := make(map[string]struct{}, len(u.Tables))

	for i := range u.Tables {
		t := &u.Tables[i]
		if err := t.Validate(); err != nil {
			return fmt.Errorf("unit %s: %w", u.ID(), err)
		}

		if _, dup := names[t.Name]; dup {
			return fmt.Errorf("%w: unit %s declares table %s twice", ErrInvalidUnit, u.ID(), t.Name)
		}

		names[t.Name] = struct{}{}
	}

	for _, r := range u.Renames {
		if r.Table == "" || r.From == "" || r.To == "" || r.From == r.To {
			return fmt.Errorf("%w: unit %s has malformed rename %s.%s -> %s", ErrInvalidUnit, u.ID(), r.Table, r.From, r.To)
		}
	}

	for _, name := range u.Removals {
		if _, declared := names[name]; declared {
			return fmt.Errorf("%w: unit %s both declares and removes table %s", ErrInvalidUnit, u.ID(), name)
		}
	}

	return nil
}

// Clone returns a deep copy so registered units cannot be mutated by callers.
func (u *Unit) Clone() Unit {
	out := *u
	out.Tables = make([]schema.TableSpec, len(u.Tables))

	for i := range u.Tables {
		out.Tables[i] = u.Tables[i].Normalize()
	}

	out.Renames = slices.Clone(u.Renames)
	out.Removals = slices.Clone(u.Removals)

	return out
}

// AffectedTables lists, without duplicates and in declaration order, every
// table the unit may create, alter, rename columns in, or remove.
func (u *Unit) AffectedTables() []string {
	var out []string

	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}

		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, r := range u.Renames {
		add(r.Table)
	}

	for i := range u.Tables {
		add(u.Tables[i].Name)
	}

	for _, name := range u.Removals {
		add(name)
	}

	return out
}

// ComputeChecksum returns the SHA-256 hex digest of the given declaration text.
func ComputeChecksum(text string) string {
	h := sha256.Sum256([]byte(text))

	return hex.EncodeToString(h[:])
}

// fingerprint renders a canonical description of a compiled-in unit for checksumming.
func fingerprint(u *Unit) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s %s\n", u.Domain, u.Version, u.Name)

	for _, t := range u.Tables {
		fmt.Fprintf(&b, "table %s\n", t.Name)

		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  col %s %s %d %t %q\n", c.Name, c.Type, c.Length, c.Nullable, c.Default)
		}

		for _, idx := range t.Indexes {
			fmt.Fprintf(&b, "  idx %s %s %s\n", t.IndexName(idx), idx.Kind, strings.Join(idx.Columns, ","))
		}
	}

	for _, r := range u.Renames {
		fmt.Fprintf(&b, "rename %s %s %s\n", r.Table, r.From, r.To)
	}

	for _, name := range u.Removals {
		fmt.Fprintf(&b, "remove %s\n", name)
	}

	return b.String()
}
