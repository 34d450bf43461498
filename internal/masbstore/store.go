// Package masbstore persists a run-history ledger of masb invocations
// (parameters and summary statistics) to SQLite, migrated with
// golang-migrate from the embedded migrations directory, so repeated runs against a shared output tree accumulate a queryable
// record instead of only leaving files on disk.
package masbstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunRecord summarizes one `masb ma` invocation for the run-history table.
type RunRecord struct {
	RunID             string
	CreatedAt         string
	Stage             string
	PointCount        int
	InitialRadius     float64
	DenoisePreserve   float64
	DenoisePlanar     float64
	NaNForInitR       bool
	DegenerateInside  int
	DegenerateOutside int
	WallTimeMs        float64
}

// Store wraps a SQLite run-history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates it to the latest schema version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("masbstore: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("masbstore: ping %s: %w", path, err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("masbstore: migrate %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts one run-history row.
func (s *Store) RecordRun(r RunRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, created_at, stage, point_count, initial_radius,
			denoise_preserve, denoise_planar, nan_for_initr, degenerate_inside,
			degenerate_outside, wall_time_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.CreatedAt, r.Stage, r.PointCount, r.InitialRadius,
		r.DenoisePreserve, r.DenoisePlanar, boolToInt(r.NaNForInitR),
		r.DegenerateInside, r.DegenerateOutside, r.WallTimeMs,
	)
	if err != nil {
		return fmt.Errorf("masbstore: record run: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func migrateUp(db *sql.DB) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	sourceDriver, err := iofs.New(subFS, ".")
	if err != nil {
		return fmt.Errorf("iofs source driver: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) { log.Printf("[migrate] "+format, v...) }
func (l *migrateLogger) Verbose() bool                          { return false }
