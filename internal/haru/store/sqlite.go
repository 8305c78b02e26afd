package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/harulog/haru/internal/haru/record"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLRemote implements Remote over database/sql. The production deployment
// points it at the shared diary database; a file path gives a self-contained
// single-node setup.
type SQLRemote struct {
	db *sql.DB
}

// NewSQLRemote opens the database, applies pragmas and runs migrations.
func NewSQLRemote(dbPath string) (*SQLRemote, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite is single-writer by design. Keep a single shared connection so
	// concurrent callers are serialized by database/sql instead of fighting
	// for write locks across multiple underlying connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous = NORMAL", // Balance between safety and speed
		"PRAGMA busy_timeout = 5000",  // Wait up to 5s for locks
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: set pragma: %w", err)
		}
	}

	r := &SQLRemote{db: db}
	if err := r.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: run migrations: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *SQLRemote) Close() error {
	return r.db.Close()
}

// Ping reports backend reachability.
func (r *SQLRemote) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// runMigrations applies all pending migrations in filename order.
func (r *SQLRemote) runMigrations() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			description TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current schema version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// Extract version from filename (e.g. "0001_init.sql" -> 1)
		name := entry.Name()
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(parts[0], "%d", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(data)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		description := strings.TrimSuffix(parts[1], ".sql")
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			version, description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

// Upsert inserts or replaces the record keyed by (owner, id).
func (r *SQLRemote) Upsert(ctx context.Context, rec *record.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encode record %s: %w", rec.ID, err)
	}

	var summary sql.NullString
	if rec.Summary != nil {
		summary = sql.NullString{String: *rec.Summary, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO diaries (id, owner_id, created_at, summary, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, id) DO UPDATE SET
			summary    = excluded.summary,
			payload    = excluded.payload,
			updated_at = excluded.updated_at
	`, rec.ID, rec.OwnerID, rec.CreatedAt, summary, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record for (owner, id) or ErrNotFound.
func (r *SQLRemote) Get(ctx context.Context, owner, id string) (*record.Record, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `
		SELECT payload FROM diaries WHERE owner_id = ? AND id = ?
	`, owner, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get record %s: %w", id, err)
	}

	var rec record.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("store: decode record %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes the record for (owner, id).
func (r *SQLRemote) Delete(ctx context.Context, owner, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM diaries WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("store: delete record %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete record %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the owner's complete records, newest first.
func (r *SQLRemote) List(ctx context.Context, owner string) ([]*record.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payload FROM diaries
		WHERE owner_id = ? AND summary IS NOT NULL AND summary != ''
		ORDER BY created_at DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	defer rows.Close()

	var recs []*record.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		var rec record.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("store: decode record: %w", err)
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate records: %w", err)
	}
	return recs, nil
}

// SyncUser upserts the caller's profile row.
func (r *SQLRemote) SyncUser(ctx context.Context, u UserRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, avatar_url, last_login)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email        = excluded.email,
			display_name = excluded.display_name,
			avatar_url   = excluded.avatar_url,
			last_login   = excluded.last_login
	`, u.ID, u.Email, u.DisplayName, u.AvatarURL, u.LastLogin)
	if err != nil {
		return fmt.Errorf("store: sync user %s: %w", u.ID, err)
	}
	return nil
}
