// Package sqlite archives committed fetches in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
)

// Archive keeps every event ever loaded, keyed by event ID, plus one row per
// successful fetch. It implements pipeline.Sink.
type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive at path. ":memory:" opens an in-memory
// database shared by every connection in the process.
func Open(path string) (*Archive, error) {
	connStr := path
	if path == ":memory:" {
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	a := &Archive{db: db}
	if err := a.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return a, nil
}

func (a *Archive) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		depth_km REAL,
		magnitude REAL NOT NULL,
		severity TEXT NOT NULL,
		occurred_at INTEGER NOT NULL,
		place TEXT,
		detail_url TEXT,
		status TEXT,
		magnitude_type TEXT,
		loaded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_occurred ON events(occurred_at DESC);
	CREATE INDEX IF NOT EXISTS idx_events_severity ON events(severity);

	CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		min_magnitude REAL NOT NULL,
		region TEXT NOT NULL,
		event_count INTEGER NOT NULL,
		loaded_at INTEGER NOT NULL
	);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Name identifies the sink in logs and metrics.
func (a *Archive) Name() string {
	return "archive"
}

// Publish upserts the events and records the fetch in one transaction.
func (a *Archive) Publish(ctx context.Context, events []domain.HazardEvent, rng domain.FetchRange) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (
			id, lat, lon, depth_km, magnitude, severity, occurred_at,
			place, detail_url, status, magnitude_type, loaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			depth_km = excluded.depth_km,
			magnitude = excluded.magnitude,
			severity = excluded.severity,
			occurred_at = excluded.occurred_at,
			place = excluded.place,
			detail_url = excluded.detail_url,
			status = excluded.status,
			magnitude_type = excluded.magnitude_type,
			loaded_at = excluded.loaded_at
	`)
	if err != nil {
		return fmt.Errorf("prepare event upsert: %w", err)
	}
	defer stmt.Close()

	loadedAt := rng.LoadedAt.UnixMilli()
	for _, e := range events {
		var depth sql.NullFloat64
		if e.Location.Depth != nil {
			depth = sql.NullFloat64{Float64: *e.Location.Depth, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Location.Lat, e.Location.Lon, depth, e.Magnitude, e.Severity().String(),
			e.OccurredAt.UnixMilli(), e.Place, e.DetailURL, e.Status, e.MagnitudeType, loadedAt,
		); err != nil {
			return fmt.Errorf("upsert event %s: %w", e.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fetches (start_date, end_date, min_magnitude, region, event_count, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		domain.FormatDate(rng.Params.Start), domain.FormatDate(rng.Params.End),
		rng.Params.MinMagnitude, string(rng.Params.Region), len(events), loadedAt,
	); err != nil {
		return fmt.Errorf("record fetch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// FetchRecord is one archived fetch.
type FetchRecord struct {
	Range      domain.FetchRange
	EventCount int
}

// RecentFetches returns up to limit fetches, newest first.
func (a *Archive) RecentFetches(ctx context.Context, limit int) ([]FetchRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT start_date, end_date, min_magnitude, region, event_count, loaded_at
		FROM fetches ORDER BY loaded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query fetches: %w", err)
	}
	defer rows.Close()

	var out []FetchRecord
	for rows.Next() {
		var (
			start, end, region string
			minMag             float64
			count              int
			loadedAt           int64
		)
		if err := rows.Scan(&start, &end, &minMag, &region, &count, &loadedAt); err != nil {
			return nil, fmt.Errorf("scan fetch: %w", err)
		}
		startDate, err := domain.ParseDate(start)
		if err != nil {
			return nil, err
		}
		endDate, err := domain.ParseDate(end)
		if err != nil {
			return nil, err
		}
		out = append(out, FetchRecord{
			Range: domain.FetchRange{
				Params: domain.FetchParams{
					Start:        startDate,
					End:          endDate,
					MinMagnitude: minMag,
					Region:       domain.Region(region),
				},
				LoadedAt: time.UnixMilli(loadedAt).UTC(),
			},
			EventCount: count,
		})
	}
	return out, rows.Err()
}

// Event looks up one archived event.
func (a *Archive) Event(ctx context.Context, id string) (domain.HazardEvent, bool, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, lat, lon, depth_km, magnitude, occurred_at, place, detail_url, status, magnitude_type
		FROM events WHERE id = ?`, id)

	var (
		e        domain.HazardEvent
		depth    sql.NullFloat64
		occurred int64
	)
	err := row.Scan(&e.ID, &e.Location.Lat, &e.Location.Lon, &depth, &e.Magnitude, &occurred,
		&e.Place, &e.DetailURL, &e.Status, &e.MagnitudeType)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HazardEvent{}, false, nil
	}
	if err != nil {
		return domain.HazardEvent{}, false, fmt.Errorf("query event: %w", err)
	}
	if depth.Valid {
		d := depth.Float64
		e.Location.Depth = &d
	}
	e.OccurredAt = time.UnixMilli(occurred).UTC()
	return e, true, nil
}

// CountBySeverity returns how many archived events fall in each class.
func (a *Archive) CountBySeverity(ctx context.Context) (map[domain.SeverityClass]int, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM events GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SeverityClass]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		class, err := domain.ParseSeverityClass(name)
		if err != nil {
			return nil, err
		}
		counts[class] = n
	}
	return counts, rows.Err()
}
