package updater

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ledgersql "github.com/pthm/dbupdater/sql"
)

// AppliedRecord is one row of the updates ledger.
type AppliedRecord struct {
	Name      string
	Hash      string
	State     State
	AppliedAt time.Time
	// Speed is how long the file took to apply. Informational only.
	Speed time.Duration
}

// Ledger reads and writes the updates table. The ledger is the only record
// of which logical migrations have been materialized into the schema.
//
// Write methods take an Execer so they can share the caller's transaction.
type Ledger struct {
	logger *slog.Logger
}

// NewLedger creates a ledger store. A nil logger uses slog.Default().
func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{logger: logger}
}

// EnsureTables creates updates and updates_include if they do not exist.
func (l *Ledger) EnsureTables(ctx context.Context, db Execer) error {
	if _, err := db.ExecContext(ctx, ledgersql.UpdatesSQL); err != nil {
		return fmt.Errorf("creating updates table: %w", err)
	}
	if _, err := db.ExecContext(ctx, ledgersql.UpdatesIncludeSQL); err != nil {
		return fmt.Errorf("creating updates_include table: %w", err)
	}
	return nil
}

// Load returns every ledger row ordered by name. Rows whose state does not
// parse are logged and dropped.
func (l *Ledger) Load(ctx context.Context, db Execer) ([]AppliedRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, hash, state, "timestamp", speed
		FROM updates
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying updates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]AppliedRecord, 0, 64)
	for rows.Next() {
		var (
			rec     AppliedRecord
			state   string
			applied scanTime
			speedMS int64
		)
		if err := rows.Scan(&rec.Name, &rec.Hash, &state, &applied, &speedMS); err != nil {
			return nil, fmt.Errorf("scanning updates row: %w", err)
		}
		rec.State, err = ParseState(state)
		if err != nil {
			l.logger.Warn("ignoring ledger entry with unknown state",
				"name", rec.Name,
				"state", state)
			continue
		}
		rec.Hash = strings.TrimSpace(rec.Hash)
		rec.AppliedAt = applied.Time
		rec.Speed = time.Duration(speedMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading updates: %w", err)
	}
	return records, nil
}

// Upsert writes the row for rec.Name, replacing any existing row.
func (l *Ledger) Upsert(ctx context.Context, db Execer, rec AppliedRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO updates (name, hash, state, "timestamp", speed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			hash = excluded.hash,
			state = excluded.state,
			"timestamp" = excluded."timestamp",
			speed = excluded.speed
	`, rec.Name, rec.Hash, rec.State.String(), rec.AppliedAt.UTC(), rec.Speed.Milliseconds())
	if err != nil {
		return fmt.Errorf("upserting ledger entry %s: %w", rec.Name, err)
	}
	return nil
}

// PatchState changes only the state of an existing row.
func (l *Ledger) PatchState(ctx context.Context, db Execer, name string, state State) error {
	_, err := db.ExecContext(ctx, `UPDATE updates SET state = $1 WHERE name = $2`, state.String(), name)
	if err != nil {
		return fmt.Errorf("updating state of %s: %w", name, err)
	}
	return nil
}

// Rename moves the row stored under oldName to newName, keeping its hash,
// state and timestamp. Any row already stored under newName is removed
// first. Run it inside a transaction so both statements land together.
func (l *Ledger) Rename(ctx context.Context, db Execer, oldName, newName string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM updates WHERE name = $1`, newName); err != nil {
		return fmt.Errorf("clearing ledger entry %s: %w", newName, err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE updates SET name = $1 WHERE name = $2`, newName, oldName); err != nil {
		return fmt.Errorf("renaming ledger entry %s to %s: %w", oldName, newName, err)
	}
	return nil
}

// DeleteMany removes the rows for names.
func (l *Ledger) DeleteMany(ctx context.Context, db Execer, names []string) error {
	for _, name := range names {
		if _, err := db.ExecContext(ctx, `DELETE FROM updates WHERE name = $1`, name); err != nil {
			return fmt.Errorf("deleting ledger entry %s: %w", name, err)
		}
	}
	return nil
}

// scanTime accepts the shapes drivers use for TIMESTAMP columns: time.Time
// from the postgres drivers, text from sqlite.
type scanTime struct {
	Time time.Time
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func (t *scanTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *scanTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp value %q", s)
}
