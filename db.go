package lattice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lattice-orm/lattice/dialect"
	"github.com/lattice-orm/lattice/driver"
	sqldriver "github.com/lattice-orm/lattice/driver/sql"
	"github.com/lattice-orm/lattice/exec"
	"github.com/lattice-orm/lattice/plan"
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	logger          *slog.Logger
	tableNamePrefix string
	cache           Cache
}

// WithLogger attaches a structured exec-log sink: one line per
// driver.Operation dispatched.
func WithLogger(l *slog.Logger) Option {
	return func(c *openConfig) { c.logger = l }
}

// WithTableNamePrefix enables test isolation: every generated
// table name gets prefix prepended. The engine keeps no migration history
// table of its own, so no such table is prefixed.
func WithTableNamePrefix(prefix string) Option {
	return func(c *openConfig) { c.tableNamePrefix = prefix }
}

// WithCache attaches a result Cache; Db.Query consults it before issuing a
// plan and populates it after, keyed by Key.
func WithCache(c Cache) Option {
	return func(c2 *openConfig) { c2.cache = c }
}

// Db is one engine handle: a built Schema, the Planner compiled against it,
// and the Driver operations flow through. A Db is safe for concurrent use
// by multiple goroutines, but serializes its own operations behind a
// single logical connection — concurrent callers queue rather than issuing
// operations against this handle in parallel. Open a second Db for real
// concurrency. The reference driver.Driver implementations
// (driver/sql.Driver) own their pool internally via *sql.DB, so Db itself
// only needs to serialize the logical operation stream on top.
type Db struct {
	schema  *schema.Schema
	driver  driver.Driver
	planner *plan.Planner
	log     *slog.Logger
	cache   Cache

	mu sync.Mutex
}

// sourceFor derives the database/sql data-source string driver/sql.Open
// needs from a parsed connection URL. Postgres and MySQL connection
// strings carry credentials and host information ConnectionURL doesn't
// parse out, so those schemes pass
// the original URL straight through to their database/sql driver (lib/pq
// and go-sql-driver/mysql both accept a DSN in URL form); sqlite's
// "database" is already the bare file path or ":memory:".
func sourceFor(d dialect.Dialect, raw string, conn dialect.ConnectionURL) string {
	if d == dialect.SQLite {
		return conn.Database
	}
	return raw
}

// Open parses url, opens the matching generic SQL Driver, builds a
// Schema from models under that driver's Capability, and compiles a
// Planner against it.
func Open(url string, models []schema.ModelDescriptor, opts ...Option) (*Db, error) {
	cfg := &openConfig{}
	for _, o := range opts {
		o(cfg)
	}

	conn, err := dialect.ParseURL(url)
	if err != nil {
		return nil, Wrap(KindInvalidDriverConfiguration, err, "open")
	}

	d, ok := dialect.DialectForScheme(conn.Scheme)
	if !ok {
		return nil, New(KindUnsupportedFeature, "connection scheme %q has no driver in this build", conn.Scheme)
	}

	drv, err := sqldriver.Open(d, sourceFor(d, url, conn))
	if err != nil {
		return nil, Wrap(KindConnectionPool, err, "open %s", conn.Scheme)
	}

	return newDb(drv, models, cfg)
}

// OpenDriver builds a Db around an already-constructed Driver (a KV
// backend, a test double, or a sql.Driver wrapping a *sql.DB the caller
// configured itself), skipping connection-URL parsing entirely.
func OpenDriver(drv driver.Driver, models []schema.ModelDescriptor, opts ...Option) (*Db, error) {
	cfg := &openConfig{}
	for _, o := range opts {
		o(cfg)
	}
	return newDb(drv, models, cfg)
}

func newDb(drv driver.Driver, models []schema.ModelDescriptor, cfg *openConfig) (*Db, error) {
	cap := drv.Capability()
	b := schema.NewBuilder(cap)
	if cfg.tableNamePrefix != "" {
		b.WithTableNamePrefix(cfg.tableNamePrefix)
	}
	for _, m := range models {
		b.AddModel(m)
	}
	sch, err := b.Build()
	if err != nil {
		return nil, Wrap(KindInvalidSchema, err, "build schema")
	}

	return &Db{
		schema:  sch,
		driver:  drv,
		planner: plan.New(sch, cap),
		log:     cfg.logger,
		cache:   cfg.cache,
	}, nil
}

// Schema exposes the built Schema (App/DB/Mapping triple), e.g. for a
// migration tool diffing it against a live database.
func (d *Db) Schema() *schema.Schema { return d.schema }

// Close releases the underlying Driver's resources.
func (d *Db) Close(ctx context.Context) error {
	return translateErr(d.driver.Close(ctx), "close")
}

// Reset drops and recreates every table the Schema names, for tests and
// local bootstrapping.
func (d *Db) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return translateErr(d.driver.Reset(ctx, d.schema.DB), "reset")
}

func (d *Db) logOp(op string) {
	if d.log != nil {
		d.log.Debug("lattice: exec", slog.String("op", op))
	}
}

// Query runs a model-level read statement through the simplify → lower →
// plan → execute pipeline and returns the result rows, consulting/
// populating the Cache (if any) first.
func (d *Db) Query(ctx context.Context, model value.ModelID, q *stmt.Query) ([]value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.query(ctx, model, q, true)
}

// query runs the pipeline. useCache is false inside a transaction: rows
// read there must not populate the cache, since a rollback would leave
// uncommitted data behind in it.
func (d *Db) query(ctx context.Context, model value.ModelID, q *stmt.Query, useCache bool) ([]value.Value, error) {
	var key Key
	if d.cache != nil && useCache {
		key = Key{
			Table:      fmt.Sprintf("model:%d", model),
			Operation:  "query",
			Predicates: fmt.Sprintf("%v|%v", q.Filter().Expr(), q.Limit),
			OrderBy:    fmt.Sprintf("%v", q.OrderBy),
		}
		if cached, err := d.cache.Get(ctx, key.String()); err == nil && cached != nil {
			if rows, err := DecodeRows(cached); err == nil {
				return rows, nil
			}
		}
	}

	p, err := d.planner.PlanQuery(model, q)
	if err != nil {
		return nil, translateErr(err, "plan query")
	}
	d.logOp("Query")
	stream, err := exec.New(d.driver, d.schema.DB).Run(ctx, p)
	if err != nil {
		return nil, translateErr(err, "exec query")
	}
	rows, err := stream.Collect()
	if err != nil {
		return nil, translateErr(err, "collect query")
	}

	if d.cache != nil && useCache {
		if enc, err := EncodeRows(rows); err == nil {
			_ = d.cache.Set(ctx, key.String(), enc, 0)
		}
	}
	return rows, nil
}

// QueryOne runs Query and requires exactly one result row, translating zero
// or many rows into RecordNotFound/TooManyRecords.
func (d *Db) QueryOne(ctx context.Context, model value.ModelID, q *stmt.Query) (value.Value, error) {
	rows, err := d.Query(ctx, model, q)
	return one(model, rows, err)
}

func one(model value.ModelID, rows []value.Value, err error) (value.Value, error) {
	if err != nil {
		return value.Value{}, err
	}
	switch len(rows) {
	case 0:
		return value.Value{}, New(KindRecordNotFound, "model %d", model)
	case 1:
		return rows[0], nil
	default:
		return value.Value{}, New(KindTooManyRecords, "model %d: expected 1 row, got %d", model, len(rows))
	}
}

// Insert plans and executes ins, invalidating the Cache (if any).
func (d *Db) Insert(ctx context.Context, ins *stmt.Insert) ([]value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.insert(ctx, ins)
}

func (d *Db) insert(ctx context.Context, ins *stmt.Insert) ([]value.Value, error) {
	return d.execMutation(ctx, func() (*exec.Plan, error) { return d.planner.PlanInsert(ins) }, "insert")
}

// Update plans and executes upd, invalidating the Cache (if any).
func (d *Db) Update(ctx context.Context, upd *stmt.Update) ([]value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.update(ctx, upd)
}

func (d *Db) update(ctx context.Context, upd *stmt.Update) ([]value.Value, error) {
	return d.execMutation(ctx, func() (*exec.Plan, error) { return d.planner.PlanUpdate(upd) }, "update")
}

// Delete plans and executes del, invalidating the Cache (if any).
func (d *Db) Delete(ctx context.Context, del *stmt.Delete) ([]value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delete(ctx, del)
}

func (d *Db) delete(ctx context.Context, del *stmt.Delete) ([]value.Value, error) {
	return d.execMutation(ctx, func() (*exec.Plan, error) { return d.planner.PlanDelete(del) }, "delete")
}

// execMutation runs a write plan and, on success, drops the whole Cache:
// a write's precise blast radius on cached query predicates isn't known
// without re-evaluating every cached Key's filter against the new row, so
// this invalidates broadly rather than risk serving stale reads.
func (d *Db) execMutation(ctx context.Context, mkPlan func() (*exec.Plan, error), label string) ([]value.Value, error) {
	p, err := mkPlan()
	if err != nil {
		return nil, translateErr(err, "plan "+label)
	}
	d.logOp(label)
	stream, err := exec.New(d.driver, d.schema.DB).Run(ctx, p)
	if err != nil {
		return nil, translateErr(err, "exec "+label)
	}
	rows, err := stream.Collect()
	if err != nil {
		return nil, translateErr(err, "collect "+label)
	}
	if d.cache != nil {
		_ = d.cache.Clear(ctx)
	}
	return rows, nil
}

// Tx is a transaction guard: the handle everything inside a Transaction
// must flow through. It shares the Db's planner and driver but skips the
// Db's own serializing mutex — the enclosing Transaction call already holds
// it for the transaction's whole lifetime, so a Tx must only be used from
// the function it was passed to, and never retained after it returns.
type Tx struct {
	db *Db
}

// Query runs a read inside the transaction.
func (tx *Tx) Query(ctx context.Context, model value.ModelID, q *stmt.Query) ([]value.Value, error) {
	return tx.db.query(ctx, model, q, false)
}

// QueryOne runs Query and requires exactly one result row.
func (tx *Tx) QueryOne(ctx context.Context, model value.ModelID, q *stmt.Query) (value.Value, error) {
	rows, err := tx.db.query(ctx, model, q, false)
	return one(model, rows, err)
}

// Insert runs a write inside the transaction.
func (tx *Tx) Insert(ctx context.Context, ins *stmt.Insert) ([]value.Value, error) {
	return tx.db.insert(ctx, ins)
}

// Update runs a write inside the transaction.
func (tx *Tx) Update(ctx context.Context, upd *stmt.Update) ([]value.Value, error) {
	return tx.db.update(ctx, upd)
}

// Delete runs a write inside the transaction.
func (tx *Tx) Delete(ctx context.Context, del *stmt.Delete) ([]value.Value, error) {
	return tx.db.delete(ctx, del)
}

// Transaction opens a nested transaction: the driver degrades it to
// SAVEPOINT/RELEASE SAVEPOINT/ROLLBACK TO SAVEPOINT within the enclosing
// transaction.
func (tx *Tx) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	return tx.db.transaction(ctx, fn)
}

// Transaction runs fn with a transaction open on this handle: it issues
// Transaction{TxStart} before fn, Transaction{TxCommit} after a nil
// return, and Transaction{TxRollback} on any error (including a panic,
// which it re-raises after rolling back). Every operation inside fn must
// go through the Tx it receives; the Db's own methods block until the
// transaction finishes. Nested Tx.Transaction calls degrade to
// SAVEPOINT/RELEASE SAVEPOINT/ROLLBACK TO SAVEPOINT at the driver.
//
// If ctx is canceled or its deadline passes while fn is running, the
// transaction is rolled back and TransactionTimeout is returned instead of
// fn's error.
func (d *Db) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transaction(ctx, fn)
}

func (d *Db) transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	if _, err := d.driver.Exec(ctx, d.schema.DB, driver.Transaction{Op: driver.TxStart}); err != nil {
		return translateErr(err, "begin transaction")
	}
	d.logOp("Transaction::Start")

	defer func() {
		if r := recover(); r != nil {
			_, _ = d.driver.Exec(ctx, d.schema.DB, driver.Transaction{Op: driver.TxRollback})
			d.logOp("Transaction::Rollback")
			panic(r)
		}
	}()

	fnErr := fn(&Tx{db: d})

	if ctx.Err() != nil {
		_, _ = d.driver.Exec(ctx, d.schema.DB, driver.Transaction{Op: driver.TxRollback})
		d.logOp("Transaction::Rollback")
		return New(KindTransactionTimeout, "transaction deadline exceeded")
	}

	if fnErr != nil {
		_, _ = d.driver.Exec(ctx, d.schema.DB, driver.Transaction{Op: driver.TxRollback})
		d.logOp("Transaction::Rollback")
		return translateErr(fnErr, "transaction")
	}

	if _, err := d.driver.Exec(ctx, d.schema.DB, driver.Transaction{Op: driver.TxCommit}); err != nil {
		return translateErr(err, "commit transaction")
	}
	d.logOp("Transaction::Commit")
	return nil
}

// translateErr rewraps a lower-layer sentinel/struct error into the root
// taxonomy's matching Kind, preserving the source chain. Errors already a
// *Error (from a nested Db call) pass through unchanged.
func translateErr(err error, opCtx string) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}

	switch {
	case errors.Is(err, exec.ErrConditionFailed):
		return Wrap(KindConditionFailed, err, "%s", opCtx)
	case errors.Is(err, exec.ErrInvalidResult):
		return Wrap(KindInvalidResult, err, "%s", opCtx)
	}

	var convErr *value.ConversionError
	if errors.As(err, &convErr) {
		return Wrap(KindInvalidTypeConversion, err, "%s", opCtx)
	}
	var evalErr *stmt.EvalError
	if errors.As(err, &evalErr) {
		return Wrap(KindExpressionEvaluationFailed, err, "%s", opCtx)
	}

	// Anything else reaching this boundary came from the driver itself
	// (a *sql.DB error, a transport failure, an unsupported-feature
	// rejection dialect/sql couldn't name more specifically): the
	// catch-all transport-level kind.
	return Wrap(KindDriverOperationFailed, err, "%s", opCtx)
}
