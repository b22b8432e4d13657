package schema

import "sort"

type Schema struct {
	Name   string
	Tables map[string]*Table
}

// TableNames returns the table names in alphabetical order.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Table struct {
	Name           string
	Columns        []*Column
	PrimaryKeyName string
	PrimaryKey     []string
	ForeignKeys    []*ForeignKey
	Uniques        []*UniqueConstraint
	Checks         []*CheckConstraint
	Indexes        []*Index
}

// Column returns the named column or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// CopyColumns lists the columns that take part in a row copy.
// Generated columns are recomputed by the target and never written.
func (t *Table) CopyColumns() []string {
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.IsGenerated {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// IdentityColumns lists the auto-increment columns that need a resync after copy.
func (t *Table) IdentityColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.IsAutoInc && !c.IsGenerated {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// HasConstraint reports whether any named constraint on t is called name.
func (t *Table) HasConstraint(name string) bool {
	if name == "" {
		return false
	}
	if t.PrimaryKeyName == name {
		return true
	}
	for _, fk := range t.ForeignKeys {
		if fk.Name == name {
			return true
		}
	}
	for _, u := range t.Uniques {
		if u.Name == name {
			return true
		}
	}
	for _, c := range t.Checks {
		if c.Name == name {
			return true
		}
	}
	return false
}

type Column struct {
	Name        string
	DataType    string // as the engine prints it, e.g. character varying(40)
	IsNullable  bool
	Default     *string
	IsAutoInc   bool
	IsGenerated bool // Default holds the generation expression
}

// ForeignKey is a referencing-side constraint; composite keys keep their
// columns in declaration order.
type ForeignKey struct {
	Name       string
	Table      string
	Columns    []string
	RefSchema  string
	RefTable   string
	RefColumns []string
	OnUpdate   string
	OnDelete   string
}

type UniqueConstraint struct {
	Name    string
	Columns []string
}

type CheckConstraint struct {
	Name       string
	Definition string // full clause, e.g. CHECK ((area > 0))
}

type Index struct {
	Name     string
	Columns  []string
	IsUnique bool
}

// SchemaInfo is one row of the schema listing.
type SchemaInfo struct {
	Name       string `json:"name"`
	TableCount int    `json:"table_count"`
}
