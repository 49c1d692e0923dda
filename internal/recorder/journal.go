// Package recorder journals session events to SQLite. Capture events carry
// the camera frame, stored as a lossless WebP blob.
package recorder

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/carstom/internal/ar/coordinator"
	"github.com/banshee-data/carstom/internal/units"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Journal is the SQLite session journal.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens or creates the journal at path and migrates it to the
// latest schema.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	j := &Journal{db: db}
	if err := j.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	diagf("journal open at %s", path)
	return j, nil
}

func (j *Journal) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(j.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateUp runs all pending migrations. The migrate instance is not closed
// because that would close the shared connection.
func (j *Journal) migrateUp() error {
	m, err := j.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (j *Journal) SchemaVersion() (uint, bool, error) {
	m, err := j.newMigrate()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) { diagf("[migrate] "+format, v...) }
func (migrateLogger) Verbose() bool                          { return false }

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartSession records a session. Starting a known session is a no-op.
func (j *Journal) StartSession(ctx context.Context, id uuid.UUID, at time.Time, config any) error {
	var cfg []byte
	if config != nil {
		var err error
		if cfg, err = json.Marshal(config); err != nil {
			return fmt.Errorf("failed to encode session config: %w", err)
		}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, started_unix_nano, config_json) VALUES (?, ?, ?)`,
		id.String(), at.UnixNano(), nullString(string(cfg)))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// EndSession stamps the end time of a session.
func (j *Journal) EndSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE sessions SET ended_unix_nano = ? WHERE session_id = ?`, at.UnixNano(), id.String())
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// Record writes one event, and its capture image when present, in a single
// transaction. It returns the event id.
func (j *Journal) Record(ctx context.Context, e coordinator.Event) (int64, error) {
	var snapJSON []byte
	var rim sql.NullFloat64
	if e.Snapshot != nil {
		var err error
		if snapJSON, err = json.Marshal(e.Snapshot); err != nil {
			return 0, fmt.Errorf("failed to encode snapshot: %w", err)
		}
		rim = sql.NullFloat64{Float64: units.RimDiameterInches(e.Snapshot.RadiusM), Valid: true}
	}
	var assemblyID sql.NullString
	if e.AssemblyID != uuid.Nil {
		assemblyID = sql.NullString{String: e.AssemblyID.String(), Valid: true}
	}

	var webp bytes.Buffer
	if e.Image != nil {
		if err := nativewebp.Encode(&webp, e.Image, nil); err != nil {
			return 0, fmt.Errorf("failed to encode capture: %w", err)
		}
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO events (session_id, kind, at_unix_nano, assembly_id, mode, detail, snapshot_json, rim_diameter_in)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID.String(), string(e.Kind), e.At.UnixNano(), assemblyID,
		nullString(e.Mode), nullString(e.Detail), nullString(string(snapJSON)), rim)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read event id: %w", err)
	}

	if e.Image != nil {
		b := e.Image.Bounds()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO captures (event_id, width, height, webp) VALUES (?, ?, ?, ?)`,
			id, b.Dx(), b.Dy(), webp.Bytes()); err != nil {
			return 0, fmt.Errorf("failed to insert capture: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit event: %w", err)
	}
	tracef("event %d %s %s", id, e.Kind, e.Detail)
	return id, nil
}

// EventRow is a journaled event.
type EventRow struct {
	ID            int64                 `json:"id"`
	SessionID     uuid.UUID             `json:"session_id"`
	Kind          coordinator.EventKind `json:"kind"`
	At            time.Time             `json:"at"`
	AssemblyID    uuid.UUID             `json:"assembly_id"`
	Mode          string                `json:"mode"`
	Detail        string                `json:"detail"`
	Snapshot      json.RawMessage       `json:"snapshot,omitempty"`
	RimDiameterIn float64               `json:"rim_diameter_in"`
	HasCapture    bool                  `json:"has_capture"`
}

// Events returns the events of a session in the order they were recorded.
func (j *Journal) Events(ctx context.Context, sessionID uuid.UUID) ([]EventRow, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT e.event_id, e.kind, e.at_unix_nano, e.assembly_id, e.mode, e.detail,
		       e.snapshot_json, e.rim_diameter_in, c.capture_id IS NOT NULL
		FROM events e
		LEFT JOIN captures c ON c.event_id = e.event_id
		WHERE e.session_id = ?
		ORDER BY e.event_id`, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var (
			r        EventRow
			kind     string
			at       int64
			assembly sql.NullString
			mode     sql.NullString
			detail   sql.NullString
			snap     sql.NullString
			rim      sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &kind, &at, &assembly, &mode, &detail, &snap, &rim, &r.HasCapture); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		r.SessionID = sessionID
		r.Kind = coordinator.EventKind(kind)
		r.At = time.Unix(0, at).UTC()
		if assembly.Valid {
			if r.AssemblyID, err = uuid.Parse(assembly.String); err != nil {
				return nil, fmt.Errorf("event %d has a malformed assembly id: %w", r.ID, err)
			}
		}
		r.Mode = mode.String
		r.Detail = detail.String
		if snap.Valid {
			r.Snapshot = json.RawMessage(snap.String)
		}
		r.RimDiameterIn = rim.Float64
		out = append(out, r)
	}
	return out, rows.Err()
}

// CaptureRow is a stored camera frame.
type CaptureRow struct {
	EventID int64
	Width   int
	Height  int
	WebP    []byte
}

// Capture returns the frame stored with an event.
func (j *Journal) Capture(ctx context.Context, eventID int64) (CaptureRow, error) {
	r := CaptureRow{EventID: eventID}
	err := j.db.QueryRowContext(ctx,
		`SELECT width, height, webp FROM captures WHERE event_id = ?`, eventID).
		Scan(&r.Width, &r.Height, &r.WebP)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("capture for event %d: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("failed to query capture: %w", err)
	}
	return r, nil
}

// SessionRow is a journaled session.
type SessionRow struct {
	ID      uuid.UUID
	Started time.Time
	Ended   *time.Time
	Config  json.RawMessage
	Events  int
}

// Sessions lists every session, newest first.
func (j *Journal) Sessions(ctx context.Context) ([]SessionRow, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.session_id, s.started_unix_nano, s.ended_unix_nano, s.config_json,
		       (SELECT COUNT(*) FROM events e WHERE e.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.started_unix_nano DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var (
			r       SessionRow
			id      string
			started int64
			ended   sql.NullInt64
			cfg     sql.NullString
		)
		if err := rows.Scan(&id, &started, &ended, &cfg, &r.Events); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("malformed session id %q: %w", id, err)
		}
		r.Started = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			r.Ended = &t
		}
		if cfg.Valid {
			r.Config = json.RawMessage(cfg.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
