package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// last_write holds the session's most recent Append time on every row, so a
// session expires as a unit, TTLSeconds after its last write.
const createSessionTableSQL = `
CREATE TABLE IF NOT EXISTS session_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id VARCHAR(255) NOT NULL,
	role VARCHAR(50) NOT NULL,
	text TEXT NOT NULL,
	last_write TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages(session_id, id);
`

// SQLStore keeps session history in sqlite.
type SQLStore struct {
	db *sql.DB

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewSQLStore opens (or creates) the session database at path.
func NewSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	s := &SQLStore{db: db, now: time.Now}
	if _, err := db.Exec(createSessionTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) History(ctx context.Context, sessionID string) ([]Entry, error) {
	cutoff := s.now().Add(-TTLSeconds * time.Second)

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, text FROM (
			SELECT id, role, text FROM session_messages
			WHERE session_id = ? AND last_write > ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		sessionID, cutoff, MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Role, &e.Text); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) Append(ctx context.Context, sessionID string, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_messages (session_id, role, text, last_write) VALUES (?, ?, ?, ?)`,
			sessionID, e.Role, e.Text, now); err != nil {
			return fmt.Errorf("failed to append entry: %w", err)
		}
	}

	// Every write refreshes the whole session's expiry clock.
	if _, err := tx.ExecContext(ctx,
		`UPDATE session_messages SET last_write = ? WHERE session_id = ?`,
		now, sessionID); err != nil {
		return fmt.Errorf("failed to refresh session expiry: %w", err)
	}

	// Trim to the newest MaxEntries and drop idle sessions.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM session_messages
		WHERE session_id = ? AND id NOT IN (
			SELECT id FROM session_messages
			WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		)`, sessionID, sessionID, MaxEntries); err != nil {
		return fmt.Errorf("failed to trim session: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_messages WHERE last_write <= ?`,
		now.Add(-TTLSeconds*time.Second)); err != nil {
		return fmt.Errorf("failed to expire sessions: %w", err)
	}

	return tx.Commit()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
var _ Store = NoopStore{}
