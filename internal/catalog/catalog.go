// Package catalog indexes checkpoint directories into a SQLite database so
// fitted models can be queried across runs.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/geko/internal/checkpoint"
	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/monitoring"
	"github.com/banshee-data/geko/internal/registry"
	"github.com/banshee-data/geko/internal/timeutil"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("catalog: entry not found")

// Catalog is a migrated checkpoint index.
type Catalog struct {
	*sql.DB
	path  string
	clock timeutil.Clock
	newID func() string
}

// Open opens (creating if needed) the catalog at path and applies pending
// migrations.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	c := &Catalog{
		DB:    db,
		path:  path,
		clock: timeutil.RealClock{},
		newID: func() string { return uuid.New().String() },
	}
	if err := c.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func applyPragmas(db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// WithClock sets the clock used for indexed_at.
func (c *Catalog) WithClock(clock timeutil.Clock) *Catalog {
	c.clock = clock
	return c
}

// Path returns the database path.
func (c *Catalog) Path() string { return c.path }

// Entry is one indexed checkpoint file.
type Entry struct {
	ID        string
	Dir       string
	File      string
	Norm      string
	Date      string
	Nork      int
	Nvec      int
	ModelID   int
	BestIdx   int
	Models    int
	MAE       float64
	RMSE      float64
	Corr      float64
	LoadError string
	IndexedAt string
}

// Model is one ranked candidate of an indexed checkpoint.
type Model struct {
	ModelIdx      int
	Rank          int
	MAE           float64
	RMSE          float64
	Corr          float64
	NCoefficients int
}

// Index scans dir for checkpoints and replaces the catalog rows for that
// directory. Unreadable files are recorded with their load error. Entry IDs
// are stable across re-indexing.
func (c *Catalog) Index(fsys fsutil.FileSystem, dir string) ([]Entry, error) {
	names, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	dir = filepath.Clean(dir)
	now := timeutil.FormatCreatedAt(c.clock.Now())
	store := checkpoint.NewStore(fsys)

	tx, err := c.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM models WHERE checkpoint_id IN (SELECT checkpoint_id FROM checkpoints WHERE dir = ?)`, dir); err != nil {
		return nil, fmt.Errorf("failed to clear models: %w", err)
	}

	var keep []string
	for _, name := range names {
		if !strings.HasSuffix(name, checkpoint.Extension) {
			continue
		}
		keep = append(keep, name)

		var (
			summary registry.Summary
			ranked  []checkpoint.ModelRecord
		)
		cp, err := store.Open(filepath.Join(dir, name))
		if err != nil {
			monitoring.Warnf("catalog: %s: %v", name, err)
			summary = registry.Summary{File: name, BestIdx: -1, Err: err}
		} else {
			summary = registry.Summarize(name, cp)
			ranked, _ = checkpoint.Rank(cp)
		}

		id, err := c.idFor(tx, dir, name)
		if err != nil {
			return nil, err
		}
		if err := upsertEntry(tx, id, dir, now, summary); err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", name, err)
		}
		for rank, rec := range ranked {
			if _, err := tx.Exec(
				`INSERT INTO models (checkpoint_id, model_idx, rank, mae, rmse, corr, n_coefficients)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, rec.ModelIdx, rank+1, nullFloat(rec.MAE), nullFloat(rec.RMSE), nullFloat(rec.Corr), len(rec.Coefficients),
			); err != nil {
				return nil, fmt.Errorf("failed to index models of %s: %w", name, err)
			}
		}
	}

	if err := pruneMissing(tx, dir, keep); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	monitoring.Logf("catalog: indexed %d checkpoints from %s", len(keep), dir)
	return c.List(dir)
}

func (c *Catalog) idFor(tx *sql.Tx, dir, file string) (string, error) {
	var id string
	err := tx.QueryRow(`SELECT checkpoint_id FROM checkpoints WHERE dir = ? AND file = ?`, dir, file).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.newID(), nil
	case err != nil:
		return "", err
	}
	return id, nil
}

func upsertEntry(tx *sql.Tx, id, dir, now string, s registry.Summary) error {
	var loadErr any
	mae, rmse, corr := nullFloat(s.MAE), nullFloat(s.RMSE), nullFloat(s.Corr)
	if s.Err != nil {
		loadErr = s.Err.Error()
		mae, rmse, corr = nil, nil, nil
	}
	norm := s.Norm
	if norm == "" {
		norm = "?"
	}
	_, err := tx.Exec(`
		INSERT INTO checkpoints (
			checkpoint_id, dir, file, norm, created_date, nork, nvec, model_id,
			best_idx, n_models, mae, rmse, corr, load_error, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dir, file) DO UPDATE SET
			norm = excluded.norm,
			created_date = excluded.created_date,
			nork = excluded.nork,
			nvec = excluded.nvec,
			model_id = excluded.model_id,
			best_idx = excluded.best_idx,
			n_models = excluded.n_models,
			mae = excluded.mae,
			rmse = excluded.rmse,
			corr = excluded.corr,
			load_error = excluded.load_error,
			indexed_at = excluded.indexed_at`,
		id, dir, s.File, norm, s.Date, s.Nork, s.Nvec, s.ModelID,
		s.BestIdx, s.Models, mae, rmse, corr, loadErr, now,
	)
	return err
}

// pruneMissing drops rows for files in dir that no longer exist.
func pruneMissing(tx *sql.Tx, dir string, keep []string) error {
	rows, err := tx.Query(`SELECT checkpoint_id, file FROM checkpoints WHERE dir = ?`, dir)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(keep))
	for _, k := range keep {
		present[k] = true
	}
	var stale []string
	for rows.Next() {
		var id, file string
		if err := rows.Scan(&id, &file); err != nil {
			rows.Close()
			return err
		}
		if !present[file] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range stale {
		if _, err := tx.Exec(`DELETE FROM checkpoints WHERE checkpoint_id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

// nullFloat stores NaN as NULL.
func nullFloat(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

const entryColumns = `checkpoint_id, dir, file, norm, created_date, nork, nvec, model_id,
	best_idx, n_models, mae, rmse, corr, load_error, indexed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e              Entry
		date, loadErr  sql.NullString
		nork, nvec, id sql.NullInt64
		best           sql.NullInt64
		mae, rmse, cor sql.NullFloat64
	)
	if err := s.Scan(&e.ID, &e.Dir, &e.File, &e.Norm, &date, &nork, &nvec, &id,
		&best, &e.Models, &mae, &rmse, &cor, &loadErr, &e.IndexedAt); err != nil {
		return Entry{}, err
	}
	e.Date = date.String
	e.Nork = int(nork.Int64)
	e.Nvec = int(nvec.Int64)
	e.ModelID = int(id.Int64)
	e.BestIdx = -1
	if best.Valid {
		e.BestIdx = int(best.Int64)
	}
	e.MAE, e.RMSE, e.Corr = floatOrNaN(mae), floatOrNaN(rmse), floatOrNaN(cor)
	e.LoadError = loadErr.String
	return e, nil
}

// List returns the entries for dir, or every entry when dir is empty,
// ordered by ascending RMSE with failed loads last.
func (c *Catalog) List(dir string) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM checkpoints`
	var args []any
	if dir != "" {
		query += ` WHERE dir = ?`
		args = append(args, filepath.Clean(dir))
	}
	query += ` ORDER BY load_error IS NOT NULL, rmse IS NULL, rmse, dir, file`

	rows, err := c.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry with id.
func (c *Catalog) Get(id string) (Entry, error) {
	e, err := scanEntry(c.QueryRow(`SELECT `+entryColumns+` FROM checkpoints WHERE checkpoint_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// Models returns the ranked candidates of entry id, best first.
func (c *Catalog) Models(id string) ([]Model, error) {
	rows, err := c.Query(`
		SELECT model_idx, rank, mae, rmse, corr, n_coefficients
		FROM models WHERE checkpoint_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Model
	for rows.Next() {
		var (
			m              Model
			mae, rmse, cor sql.NullFloat64
		)
		if err := rows.Scan(&m.ModelIdx, &m.Rank, &mae, &rmse, &cor, &m.NCoefficients); err != nil {
			return nil, err
		}
		m.MAE, m.RMSE, m.Corr = floatOrNaN(mae), floatOrNaN(rmse), floatOrNaN(cor)
		out = append(out, m)
	}
	return out, rows.Err()
}
