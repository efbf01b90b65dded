package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/searchdispatch/pkg/database"
	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// Compile-time interface checks
var (
	_ search.Backend              = (*Adapter)(nil)
	_ search.BatchRetriever       = (*Adapter)(nil)
	_ search.RandomSampler        = (*Adapter)(nil)
	_ search.IDLister             = (*Adapter)(nil)
	_ search.SitemapFieldLister   = (*Adapter)(nil)
	_ search.WorkExpressionLister = (*Adapter)(nil)
	_ search.RequestDetailer      = (*Adapter)(nil)
	_ search.HealthChecker        = (*Adapter)(nil)
)

// Config contains SQL catalog configuration.
type Config struct {
	ID           string `hcl:"id,label"`
	Driver       string `hcl:"driver"`
	DSN          string `hcl:"dsn"`
	AutoMigrate  bool   `hcl:"auto_migrate,optional"`
	MaxOpenConns int    `hcl:"max_open_conns,optional"`
}

// Validate validates the SQL configuration.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
	); err != nil {
		return err
	}
	return c.connection().Validate()
}

func (c Config) connection() database.Config {
	return database.Config{Driver: c.Driver, DSN: c.DSN, MaxOpenConns: c.MaxOpenConns}
}

// Adapter is a backend over a relational catalog table. It supports random
// sampling natively through ORDER BY RANDOM(), which both SQLite and
// PostgreSQL understand.
type Adapter struct {
	id     string
	db     *gorm.DB
	logger hclog.Logger

	mu      sync.Mutex
	details map[string]any
}

// NewAdapter connects to the configured database and, when requested,
// migrates the records table.
func NewAdapter(cfg *Config, logger hclog.Logger) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sql config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sql config: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	db, err := database.Connect(cfg.connection(), logger.Named("sql"))
	if err != nil {
		return nil, err
	}
	a := newAdapter(cfg.ID, db, logger)
	if cfg.AutoMigrate {
		if err := a.Migrate(context.Background()); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func newAdapter(id string, db *gorm.DB, logger hclog.Logger) *Adapter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Adapter{
		id:     id,
		db:     db,
		logger: logger.Named("sql").With("backend", id),
	}
}

func (a *Adapter) Identifier() string { return a.id }

// Migrate creates or updates the records table.
func (a *Adapter) Migrate(ctx context.Context) error {
	if err := a.db.WithContext(ctx).AutoMigrate(&CatalogRecord{}); err != nil {
		return fmt.Errorf("failed to migrate records table: %w", err)
	}
	return nil
}

// Save inserts or updates records.
func (a *Adapter) Save(ctx context.Context, records ...*CatalogRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := a.db.WithContext(ctx).Save(records).Error; err != nil {
		return &search.Error{Op: "save", Backend: a.id, Err: err}
	}
	return nil
}

// matching returns a scope selecting the records that match q and the
// "filter" parameters. Query text is split into words which must all occur
// in the title or body.
func (a *Adapter) matching(op string, q search.Query, params *search.ParamBag) (func(*gorm.DB) *gorm.DB, error) {
	type clause struct {
		sql  string
		args []any
	}
	var clauses []clause

	if !search.IsMatchAll(q) {
		for _, word := range strings.Fields(q.String()) {
			switch word {
			case "AND", "OR", "NOT":
				continue
			}
			if i := strings.IndexByte(word, ':'); i >= 0 {
				word = word[i+1:]
			}
			word = strings.Trim(strings.ToLower(word), `"()*`)
			if word == "" {
				continue
			}
			like := "%" + word + "%"
			clauses = append(clauses, clause{sql: "(LOWER(title) LIKE ? OR LOWER(body) LIKE ?)", args: []any{like, like}})
		}
	}

	for _, f := range params.Get("filter") {
		name, value, ok := strings.Cut(f, ":")
		column, known := filterColumns[name]
		if !ok || !known {
			return nil, &search.Error{Op: op, Backend: a.id, Err: search.ErrInvalidQuery, Msg: fmt.Sprintf("unsupported filter %q", f)}
		}
		clauses = append(clauses, clause{sql: column + " = ?", args: []any{strings.Trim(value, `"`)}})
	}

	return func(tx *gorm.DB) *gorm.DB {
		for _, c := range clauses {
			tx = tx.Where(c.sql, c.args...)
		}
		return tx
	}, nil
}

// query counts the matching rows and, when limit > 0, loads a page of them
// in the given order.
func (a *Adapter) query(ctx context.Context, op string, q search.Query, order string, offset, limit int, params *search.ParamBag, columns ...string) ([]CatalogRecord, int, error) {
	scope, err := a.matching(op, q, params)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	var total int64
	if err := a.db.WithContext(ctx).Model(&CatalogRecord{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, a.fail(op, err)
	}

	var rows []CatalogRecord
	if limit > 0 {
		tx := a.db.WithContext(ctx).Model(&CatalogRecord{}).Scopes(scope).Order(order).Limit(limit)
		if offset > 0 {
			tx = tx.Offset(offset)
		}
		if len(columns) > 0 {
			tx = tx.Select(columns)
		}
		if err := tx.Find(&rows).Error; err != nil {
			return nil, 0, a.fail(op, err)
		}
	}

	a.setDetails(start, int(total), len(rows))
	return rows, int(total), nil
}

func (a *Adapter) Search(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	rows, total, err := a.query(ctx, "search", q, orderFor(params), offset, limit, params)
	if err != nil {
		return nil, err
	}
	return search.NewRecordCollection(a.id, a.documents(rows), total, offset), nil
}

// orderFor returns the ORDER BY expression for the "sort" parameter.
func orderFor(params *search.ParamBag) string {
	if s, ok := params.GetFirst("sort"); ok {
		desc := strings.HasPrefix(s, "-")
		if column, known := filterColumns[strings.TrimPrefix(s, "-")]; known {
			if desc {
				return column + " DESC"
			}
			return column
		}
	}
	return "id"
}

func (a *Adapter) Retrieve(ctx context.Context, id string, params *search.ParamBag) (*search.RecordCollection, error) {
	rows, err := a.byIDs(ctx, "retrieve", []string{id})
	if err != nil {
		return nil, err
	}
	return search.NewRecordCollection(a.id, rows, len(rows), 0), nil
}

// RetrieveBatch loads ids with a single IN query and returns them in input
// order. Unknown ids are skipped.
func (a *Adapter) RetrieveBatch(ctx context.Context, ids []string, params *search.ParamBag) (*search.RecordCollection, error) {
	rows, err := a.byIDs(ctx, "retrieveBatch", ids)
	if err != nil {
		return nil, err
	}
	return search.NewRecordCollection(a.id, rows, len(rows), 0), nil
}

func (a *Adapter) byIDs(ctx context.Context, op string, ids []string) ([]search.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	start := time.Now()
	var rows []CatalogRecord
	if err := a.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, a.fail(op, err)
	}
	a.setDetails(start, len(rows), len(rows))

	byID := make(map[string]*CatalogRecord, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	var out []search.Record
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r.toDocument(a.id))
		}
	}
	return out, nil
}

// Random returns up to limit matching records in random order.
func (a *Adapter) Random(ctx context.Context, q search.Query, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	rows, total, err := a.query(ctx, "random", q, "RANDOM()", 0, limit, params)
	if err != nil {
		return nil, err
	}
	return search.NewRecordCollection(a.id, a.documents(rows), total, 0), nil
}

func (a *Adapter) GetIDs(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	rows, total, err := a.query(ctx, "getIds", q, orderFor(params), offset, limit, params, "id")
	if err != nil {
		return nil, err
	}
	out := make([]search.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, &search.IDRecord{ID: r.ID, Source: a.id})
	}
	return search.NewRecordCollection(a.id, out, total, offset), nil
}

func (a *Adapter) GetSitemapFields(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	rows, total, err := a.query(ctx, "getSitemapFields", q, orderFor(params), offset, limit, params, "id", "last_modified")
	if err != nil {
		return nil, err
	}
	out := make([]search.Record, 0, len(rows))
	for _, r := range rows {
		rec := &search.SitemapRecord{ID: r.ID, Source: a.id}
		if r.LastModified != nil {
			rec.LastModified = r.LastModified.UTC()
		}
		out = append(out, rec)
	}
	return search.NewRecordCollection(a.id, out, total, offset), nil
}

// WorkExpressions returns the records sharing the work key of id. A record
// without a work key has no other expressions.
func (a *Adapter) WorkExpressions(ctx context.Context, id string, includeSelf bool, params *search.ParamBag) (*search.RecordCollection, error) {
	var self CatalogRecord
	err := a.db.WithContext(ctx).Select("id", "work_key").Where("id = ?", id).Take(&self).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return search.NewRecordCollection(a.id, nil, 0, 0), nil
	}
	if err != nil {
		return nil, a.fail("workExpressions", err)
	}
	if self.WorkKey == "" {
		return search.NewRecordCollection(a.id, nil, 0, 0), nil
	}

	start := time.Now()
	tx := a.db.WithContext(ctx).Where("work_key = ?", self.WorkKey)
	if !includeSelf {
		tx = tx.Where("id <> ?", id)
	}
	var rows []CatalogRecord
	if err := tx.Order("id").Find(&rows).Error; err != nil {
		return nil, a.fail("workExpressions", err)
	}
	a.setDetails(start, len(rows), len(rows))
	return search.NewRecordCollection(a.id, a.documents(rows), len(rows), 0), nil
}

func (a *Adapter) documents(rows []CatalogRecord) []search.Record {
	out := make([]search.Record, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDocument(a.id))
	}
	return out
}

func (a *Adapter) fail(op string, err error) error {
	a.logger.Debug("sql query failed", "operation", op, "error", err)
	return &search.Error{Op: op, Backend: a.id, Err: err, Msg: "sql query failed"}
}

func (a *Adapter) setDetails(start time.Time, total, rows int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.details = map[string]any{
		"elapsed_ms": time.Since(start).Milliseconds(),
		"total":      total,
		"rows":       rows,
	}
}

func (a *Adapter) ResetExtraRequestDetails() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.details = nil
}

func (a *Adapter) ExtraRequestDetails() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.details
}

// Healthy pings the database.
func (a *Adapter) Healthy(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection pool.
func (a *Adapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
