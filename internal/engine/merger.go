package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"db-merge/internal/dialect"
	"db-merge/internal/mergeerr"
	"db-merge/internal/schema"
)

// Merger runs merges against one database. It holds no per-merge state and
// may be shared between goroutines; merges into the same target are
// serialised by the dialect's schema lock.
type Merger struct {
	db        *sql.DB
	dialect   dialect.Dialect
	logger    *slog.Logger
	observers []Observer
	// schema holding the merge history table; empty disables recording
	history string
}

type Option func(*Merger)

func WithLogger(l *slog.Logger) Option {
	return func(m *Merger) { m.logger = l }
}

func WithObserver(o Observer) Option {
	return func(m *Merger) { m.observers = append(m.observers, o) }
}

// WithHistory records every committed merge in schema_merges inside the
// given schema, as part of the merge transaction.
func WithHistory(schema string) Option {
	return func(m *Merger) { m.history = schema }
}

func NewMerger(db *sql.DB, d dialect.Dialect, opts ...Option) *Merger {
	m := &Merger{db: db, dialect: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// prepared is everything known before the first write.
type prepared struct {
	sources      []*schema.Schema
	graph        *schema.Graph
	order        []string
	targetExists bool
	plan         *Plan
}

// Merge combines the sources into the target in a single transaction.
// Every failure rolls the transaction back and is returned as one of the
// mergeerr types.
func (m *Merger) Merge(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	strategy, _ := ParseStrategy(string(req.Strategy))
	sources := req.SourceSchemas()
	start := time.Now()
	log := m.logger.With(
		slog.Any("sources", sources),
		slog.String("target", req.TargetSchema),
	)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, m.fail(log, nil, StateValidating, mergeerr.Classify(err, "begin", "", ""))
	}

	m.enter(log, StateValidating)
	if err := m.dialect.LockSchema(ctx, tx, req.TargetSchema); err != nil {
		return nil, m.fail(log, tx, StateValidating, mergeerr.Classify(err, "lock", "", ""))
	}

	p, state, err := m.prepare(ctx, tx, log, req)
	if err != nil {
		return nil, m.fail(log, tx, state, err)
	}

	// --- Structure ---
	m.enter(log, StateCreatingStructure)
	if err := m.execAll(ctx, tx, p.plan.Setup); err != nil {
		return nil, m.fail(log, tx, StateCreatingStructure, err)
	}

	// --- Data ---
	m.enter(log, StateCopyingData)
	c := &copier{tx: tx, d: m.dialect, logger: log, strategy: strategy}
	first := p.sources[0]
	res := &Result{
		MergedTables:        first.TableNames(),
		CreationOrder:       p.order,
		SourceSchema1Tables: first.TableNames(),
		SourceSchema2Tables: p.sources[1].TableNames(),
		SourceSchemaTables:  make(map[string][]string, len(p.sources)),
		RowCounts:           make(map[string]int64, len(p.order)),
		SelfReferencing:     p.graph.SelfReferencing(),
		Strategy:            strategy,
	}
	for _, src := range p.sources {
		res.SourceSchemaTables[src.Name] = src.TableNames()
	}
	existed := make(map[string]bool, len(p.plan.Existing))
	for _, name := range p.plan.Existing {
		existed[name] = true
	}
	for i, name := range p.order {
		tr, err := c.copyTable(ctx, first.Tables[name], req.TargetSchema, sources...)
		if err != nil {
			return nil, m.fail(log, tx, StateCopyingData, err)
		}
		tr.Existed = existed[name]
		res.Tables = append(res.Tables, tr)
		res.RowCounts[name] = tr.TargetRows
		m.notify(Event{State: StateCopyingData, Table: name, Done: i + 1, Total: len(p.order)})
	}

	// --- Deferred constraints and indexes ---
	m.enter(log, StateAttachingConstraints)
	if err := m.execAll(ctx, tx, p.plan.Deferred); err != nil {
		return nil, m.fail(log, tx, StateAttachingConstraints, err)
	}
	if err := m.execAll(ctx, tx, p.plan.Indexes); err != nil {
		return nil, m.fail(log, tx, StateAttachingConstraints, err)
	}

	res.TargetSchemaTables, err = schema.ListTables(ctx, tx, m.dialect, req.TargetSchema)
	if err != nil {
		return nil, m.fail(log, tx, StateAttachingConstraints, mergeerr.Classify(err, "introspect", "", ""))
	}

	if m.history != "" {
		rec := MergeRecord{
			Target:     req.TargetSchema,
			Sources:    sources,
			Strategy:   strategy,
			TableCount: len(res.CreationOrder),
			MergedAt:   time.Now().UTC(),
		}
		for _, n := range res.RowCounts {
			rec.TotalRows += n
		}
		if err := recordMerge(ctx, tx, m.dialect, m.history, rec); err != nil {
			return nil, m.fail(log, tx, StateAttachingConstraints, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, m.fail(log, nil, StateAttachingConstraints, mergeerr.Classify(err, "commit", "", ""))
	}
	res.State = StateCommitted
	res.Elapsed = time.Since(start)
	m.enter(log, StateCommitted)
	log.Info("merge committed",
		slog.Int("tables", len(res.CreationOrder)),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// Plan runs the read-only half of a merge and returns the DDL it would
// execute. Its transaction is always rolled back.
func (m *Merger) Plan(ctx context.Context, req Request) (*Plan, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	log := m.logger.With(slog.String("target", req.TargetSchema), slog.Bool("dry_run", true))

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mergeerr.Classify(err, "begin", "", "")
	}
	defer tx.Rollback()

	p, _, err := m.prepare(ctx, tx, log, req)
	if err != nil {
		return nil, err
	}
	return p.plan, nil
}

// prepare validates the request against the catalog, orders the tables and
// synthesises the plan. On failure it also returns the state it failed in.
func (m *Merger) prepare(ctx context.Context, tx *sql.Tx, log *slog.Logger, req Request) (*prepared, State, error) {
	p := &prepared{}
	var err error

	// --- Validating ---
	p.targetExists, err = schema.Exists(ctx, tx, m.dialect, req.TargetSchema)
	if err != nil {
		return nil, StateValidating, mergeerr.Classify(err, "validate", "", "")
	}
	if !p.targetExists && !req.CreateNewSchema {
		return nil, StateValidating, &mergeerr.TargetSchemaNotFoundError{Schema: req.TargetSchema}
	}

	for _, name := range req.SourceSchemas() {
		src, err := schema.Introspect(ctx, tx, m.dialect, name)
		if err != nil {
			return nil, StateValidating, mergeerr.Classify(err, "introspect", "", "")
		}
		p.sources = append(p.sources, src)
	}

	// every source is held against the first
	var common []string
	for _, src := range p.sources[1:] {
		diff := schema.Compare(p.sources[0], src, schema.CompareOptions{StrictColumns: req.StrictColumns})
		if err := diff.Err(); err != nil {
			return nil, StateValidating, err
		}
		common = diff.Common
	}

	// --- Graph ---
	m.enter(log, StateGraphBuilding)
	fkLists := make([][]*schema.ForeignKey, len(p.sources))
	for i, src := range p.sources {
		fkLists[i] = schema.ForeignKeysOf(src)
	}
	p.graph, err = schema.BuildGraph(common, fkLists...)
	if err != nil {
		return nil, StateGraphBuilding, err
	}

	// --- Ordering ---
	m.enter(log, StateOrdering)
	p.order, err = p.graph.Order()
	if err != nil {
		return nil, StateOrdering, err
	}
	log.Debug("creation order resolved", slog.Any("order", p.order))

	existing := &schema.Schema{Name: req.TargetSchema}
	if p.targetExists {
		existing, err = schema.Load(ctx, tx, m.dialect, req.TargetSchema)
		if err != nil {
			return nil, StateOrdering, mergeerr.Classify(err, "introspect", "", "")
		}
	}
	p.plan = Synthesize(m.dialect, p.sources[0], req.TargetSchema, p.order, existing, req.CreateNewSchema)
	p.plan.SelfReferencing = p.graph.SelfReferencing()
	return p, StateOrdering, nil
}

func (m *Merger) execAll(ctx context.Context, tx *sql.Tx, stmts []Statement) error {
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.SQL); err != nil {
			return mergeerr.Classify(err, st.Stage, st.Table, st.SQL)
		}
	}
	return nil
}

func (m *Merger) enter(log *slog.Logger, s State) {
	log.Info("merge state", slog.String("state", string(s)))
	m.notify(Event{State: s})
}

// fail rolls back tx (when still open) and reports the terminal state.
func (m *Merger) fail(log *slog.Logger, tx *sql.Tx, at State, err error) error {
	if tx != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn("rollback failed", slog.String("error", rbErr.Error()))
		}
	}
	kind, _ := mergeerr.KindOf(err)
	log.Error("merge rolled back",
		slog.String("failed_in", string(at)),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)
	m.notify(Event{State: StateRolledBack, Err: err})
	return err
}

func (m *Merger) notify(ev Event) {
	for _, o := range m.observers {
		o(ev)
	}
}
