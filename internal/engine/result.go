package engine

import (
	"fmt"
	"time"
)

// State is a step of a merge. Committed and RolledBack are terminal.
type State string

const (
	StateValidating           State = "validating"
	StateGraphBuilding        State = "graph_building"
	StateOrdering             State = "ordering"
	StateCreatingStructure    State = "creating_structure"
	StateCopyingData          State = "copying_data"
	StateAttachingConstraints State = "attaching_constraints"
	StateCommitted            State = "committed"
	StateRolledBack           State = "rolled_back"
)

// Strategy decides which row survives a primary key collision.
type Strategy string

const (
	// LastWriterWins replaces the whole row; a later source wins over an
	// earlier one, and every source wins over rows already in the target.
	LastWriterWins Strategy = "last-writer-wins"
	// FirstWriterWins keeps the row that arrived first.
	FirstWriterWins Strategy = "first-writer-wins"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", LastWriterWins:
		return LastWriterWins, nil
	case FirstWriterWins:
		return FirstWriterWins, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want %s or %s)", s, LastWriterWins, FirstWriterWins)
	}
}

// Request names the sources and the target of one merge. Sources is the
// general form; SourceSchema1 and SourceSchema2 are shorthand for exactly two.
// The two forms cannot be mixed.
type Request struct {
	SourceSchema1   string   `json:"source_schema_1,omitempty"`
	SourceSchema2   string   `json:"source_schema_2,omitempty"`
	Sources         []string `json:"source_schemas,omitempty"`
	TargetSchema    string   `json:"target_schema"`
	CreateNewSchema bool     `json:"create_new_schema"`
	Strategy        Strategy `json:"strategy,omitempty"`
	StrictColumns   bool     `json:"strict_columns,omitempty"`
}

// SourceSchemas returns the sources in copy order. Repeated entries in
// Sources are dropped, keeping the first occurrence.
func (r Request) SourceSchemas() []string {
	if len(r.Sources) == 0 {
		return []string{r.SourceSchema1, r.SourceSchema2}
	}
	seen := make(map[string]bool, len(r.Sources))
	out := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (r Request) validate() error {
	if len(r.Sources) > 0 {
		if r.SourceSchema1 != "" || r.SourceSchema2 != "" {
			return fmt.Errorf("source schemas cannot be combined with source schema 1 and 2")
		}
		if len(r.SourceSchemas()) < 2 {
			return fmt.Errorf("at least two distinct source schemas are required")
		}
	} else {
		switch {
		case r.SourceSchema1 == "":
			return fmt.Errorf("source schema 1 is required")
		case r.SourceSchema2 == "":
			return fmt.Errorf("source schema 2 is required")
		}
	}
	if r.TargetSchema == "" {
		return fmt.Errorf("target schema is required")
	}
	_, err := ParseStrategy(string(r.Strategy))
	return err
}

// TableResult is the copy detail of one table.
type TableResult struct {
	Table string `json:"table"`
	// Rows affected by each source's statement. For upserts this counts
	// updated rows too.
	FromSchema1 int64 `json:"from_schema_1"`
	FromSchema2 int64 `json:"from_schema_2"`
	// One entry per source, in copy order.
	FromSources []int64 `json:"from_sources"`
	TargetRows  int64   `json:"target_rows"`
	Existed     bool    `json:"existed"`
}

// Result is returned by a committed merge. SourceSchemaTables is keyed by
// source name and holds every source, the first two included.
type Result struct {
	MergedTables        []string            `json:"merged_tables"`
	CreationOrder       []string            `json:"creation_order"`
	SourceSchema1Tables []string            `json:"source_schema_1_tables"`
	SourceSchema2Tables []string            `json:"source_schema_2_tables"`
	SourceSchemaTables  map[string][]string `json:"source_schema_tables"`
	TargetSchemaTables  []string            `json:"target_schema_tables"`
	RowCounts           map[string]int64    `json:"row_counts"`
	Tables              []TableResult       `json:"tables"`
	SelfReferencing     []string            `json:"self_referencing"`
	Strategy            Strategy            `json:"strategy"`
	State               State               `json:"state"`
	Elapsed             time.Duration       `json:"-"`
}

// Event is reported to observers on every state change and after every
// copied table.
type Event struct {
	State State
	Table string
	Done  int
	Total int
	Err   error
}

type Observer func(Event)
