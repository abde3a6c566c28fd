package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/brandon/persona-responder/internal/memory"
)

// SQLiteBackend persists state in a SQLite database
type SQLiteBackend struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewSQLiteBackend opens (or creates) the database at dbPath
func NewSQLiteBackend(dbPath string, logger *logrus.Logger) (*SQLiteBackend, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; one connection avoids SQLITE_BUSY between our own statements
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("State database initialized")
	return &SQLiteBackend{db: db, logger: logger}, nil
}

// Read loads the whole record
func (b *SQLiteBackend) Read(ctx context.Context) (*State, error) {
	var savedAt string
	err := b.db.QueryRowContext(ctx, "SELECT value FROM state_meta WHERE key = 'saved_at'").Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state marker: %w", err)
	}

	st := New()

	if err := b.readHandled(ctx, st); err != nil {
		return nil, err
	}
	if err := b.readSendLog(ctx, st); err != nil {
		return nil, err
	}
	if err := b.readExchanges(ctx, st); err != nil {
		return nil, err
	}

	return st, nil
}

func (b *SQLiteBackend) readHandled(ctx context.Context, st *State) error {
	rows, err := b.db.QueryContext(ctx, "SELECT message_id FROM handled_messages ORDER BY position")
	if err != nil {
		return fmt.Errorf("failed to query handled messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan handled message: %w", err)
		}
		st.HandledIDs = append(st.HandledIDs, id)
	}
	return rows.Err()
}

func (b *SQLiteBackend) readSendLog(ctx context.Context, st *State) error {
	rows, err := b.db.QueryContext(ctx, "SELECT sent_at, sender, message_id FROM send_events ORDER BY position")
	if err != nil {
		return fmt.Errorf("failed to query send events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev SendEvent
		var sentAt int64
		if err := rows.Scan(&sentAt, &ev.Sender, &ev.MessageID); err != nil {
			return fmt.Errorf("failed to scan send event: %w", err)
		}
		ev.Time = time.Unix(0, sentAt).UTC()
		st.SendLog = append(st.SendLog, ev)
	}
	return rows.Err()
}

func (b *SQLiteBackend) readExchanges(ctx context.Context, st *State) error {
	rows, err := b.db.QueryContext(ctx, `
		SELECT correspondent, persona_key, exchanged_at, inbound, outbound
		FROM exchanges
		ORDER BY position
	`)
	if err != nil {
		return fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var correspondent, personaKey string
		var at int64
		var ex memory.Exchange
		if err := rows.Scan(&correspondent, &personaKey, &at, &ex.Inbound, &ex.Outbound); err != nil {
			return fmt.Errorf("failed to scan exchange: %w", err)
		}
		ex.Time = time.Unix(0, at).UTC()

		byPersona, ok := st.Conversations[correspondent]
		if !ok {
			byPersona = make(map[string][]memory.Exchange)
			st.Conversations[correspondent] = byPersona
		}
		byPersona[personaKey] = append(byPersona[personaKey], ex)
	}
	return rows.Err()
}

// Write replaces the stored record with st in one transaction
func (b *SQLiteBackend) Write(ctx context.Context, st *State) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck
		}
	}()

	for _, table := range []string{"handled_messages", "send_events", "exchanges"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i, id := range st.HandledIDs {
		if _, err = tx.ExecContext(ctx, "INSERT OR IGNORE INTO handled_messages (position, message_id) VALUES (?, ?)", i, id); err != nil {
			return fmt.Errorf("failed to insert handled message: %w", err)
		}
	}

	for i, ev := range st.SendLog {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO send_events (position, sent_at, sender, message_id) VALUES (?, ?, ?, ?)",
			i, ev.Time.UnixNano(), ev.Sender, ev.MessageID)
		if err != nil {
			return fmt.Errorf("failed to insert send event: %w", err)
		}
	}

	position := 0
	for _, correspondent := range slices.Sorted(maps.Keys(st.Conversations)) {
		byPersona := st.Conversations[correspondent]
		for _, personaKey := range slices.Sorted(maps.Keys(byPersona)) {
			for _, ex := range byPersona[personaKey] {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO exchanges (position, correspondent, persona_key, exchanged_at, inbound, outbound)
					VALUES (?, ?, ?, ?, ?, ?)
				`, position, correspondent, personaKey, ex.Time.UnixNano(), ex.Inbound, ex.Outbound)
				if err != nil {
					return fmt.Errorf("failed to insert exchange: %w", err)
				}
				position++
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_meta (key, value) VALUES ('saved_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to update state marker: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

// Close closes the database connection
func (b *SQLiteBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
