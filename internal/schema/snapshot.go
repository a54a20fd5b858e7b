package schema

// ColumnSnapshot is a column as reported by storage. DataType is the
// physical type string in the storage engine's own spelling.
type ColumnSnapshot struct {
	Name     string
	DataType string
	Nullable bool
	Default  string
}

// TableSnapshot is the actual shape of a table as reported by a connector.
type TableSnapshot struct {
	Name    string
	Columns []ColumnSnapshot
	Indexes []IndexSpec
}

// Column looks up a reported column by name.
func (s *TableSnapshot) Column(name string) (ColumnSnapshot, bool) {
	if s == nil {
		return ColumnSnapshot{}, false
	}

	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}

	return ColumnSnapshot{}, false
}

// Index looks up a reported index by name.
func (s *TableSnapshot) Index(name string) (IndexSpec, bool) {
	if s == nil {
		return IndexSpec{}, false
	}

	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}

	return IndexSpec{}, false
}
