package schema

import (
	"fmt"
	"sort"

	"db-merge/internal/mergeerr"
)

type CompareOptions struct {
	// StrictColumns also compares column names and declared types of
	// tables present on both sides.
	StrictColumns bool
}

// Diff is the three-way comparison of two schemas' table sets.
type Diff struct {
	Schema1            string                    `json:"schema1"`
	Schema2            string                    `json:"schema2"`
	OnlyInSchema1      []string                  `json:"only_in_schema1"`
	OnlyInSchema2      []string                  `json:"only_in_schema2"`
	Common             []string                  `json:"common"`
	Columns            []mergeerr.ColumnMismatch `json:"columns,omitempty"`
	ExternalReferences []string                  `json:"external_references,omitempty"`
}

// Identical reports whether the schemas may be merged.
func (d *Diff) Identical() bool {
	return len(d.OnlyInSchema1) == 0 && len(d.OnlyInSchema2) == 0 &&
		len(d.Columns) == 0 && len(d.ExternalReferences) == 0
}

// Err returns a StructureMismatchError carrying the diff, or nil.
func (d *Diff) Err() error {
	if d.Identical() {
		return nil
	}
	return &mergeerr.StructureMismatchError{
		Schema1:            d.Schema1,
		Schema2:            d.Schema2,
		OnlyInSchema1:      d.OnlyInSchema1,
		OnlyInSchema2:      d.OnlyInSchema2,
		Common:             d.Common,
		Columns:            d.Columns,
		ExternalReferences: d.ExternalReferences,
	}
}

// Compare diffs the table name sets of a and b. All lists are sorted.
func Compare(a, b *Schema, opts CompareOptions) *Diff {
	diff := &Diff{
		Schema1:       a.Name,
		Schema2:       b.Name,
		OnlyInSchema1: []string{},
		OnlyInSchema2: []string{},
		Common:        []string{},
	}

	for _, name := range a.TableNames() {
		if _, ok := b.Tables[name]; ok {
			diff.Common = append(diff.Common, name)
		} else {
			diff.OnlyInSchema1 = append(diff.OnlyInSchema1, name)
		}
	}
	for _, name := range b.TableNames() {
		if _, ok := a.Tables[name]; !ok {
			diff.OnlyInSchema2 = append(diff.OnlyInSchema2, name)
		}
	}

	if opts.StrictColumns {
		for _, name := range diff.Common {
			diff.Columns = append(diff.Columns, compareColumns(a.Tables[name], b.Tables[name])...)
		}
	}

	diff.ExternalReferences = append(externalReferences(a), externalReferences(b)...)
	return diff
}

func compareColumns(a, b *Table) []mergeerr.ColumnMismatch {
	types1 := make(map[string]string, len(a.Columns))
	types2 := make(map[string]string, len(b.Columns))
	var names []string
	for _, c := range a.Columns {
		types1[c.Name] = c.DataType
		names = append(names, c.Name)
	}
	for _, c := range b.Columns {
		types2[c.Name] = c.DataType
		if _, ok := types1[c.Name]; !ok {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)

	var out []mergeerr.ColumnMismatch
	for _, n := range names {
		if types1[n] != types2[n] {
			out = append(out, mergeerr.ColumnMismatch{
				Table:       a.Name,
				Column:      n,
				Schema1Type: types1[n],
				Schema2Type: types2[n],
			})
		}
	}
	return out
}

// externalReferences lists foreign keys that point outside s, either into
// another schema or at a relation the introspection did not return.
func externalReferences(s *Schema) []string {
	var out []string
	for _, name := range s.TableNames() {
		for _, fk := range s.Tables[name].ForeignKeys {
			_, known := s.Tables[fk.RefTable]
			if fk.RefSchema == s.Name && known {
				continue
			}
			out = append(out, fmt.Sprintf("%s.%s.%s -> %s.%s", s.Name, name, fk.Name, fk.RefSchema, fk.RefTable))
		}
	}
	return out
}
