package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bgp-cmdb/pkg/model"
)

const schema = `CREATE TABLE IF NOT EXISTS journal(
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	kind TEXT NOT NULL,
	target_id INTEGER NOT NULL,
	detail TEXT,
	ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_ts ON journal(ts);`

// SQLite stores the journal in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the journal database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, e model.JournalEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal(id, action, kind, target_id, detail, ts) VALUES(?,?,?,?,?,?)`,
		e.ID, e.Action, string(e.Kind), e.TargetID, e.Detail, e.Timestamp.UnixNano())
	return err
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultCapacity
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, kind, target_id, detail, ts FROM journal ORDER BY ts DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.JournalEntry
	for rows.Next() {
		var (
			e      model.JournalEntry
			kind   string
			detail sql.NullString
			ts     int64
		)
		if err := rows.Scan(&e.ID, &e.Action, &kind, &e.TargetID, &detail, &ts); err != nil {
			return nil, err
		}
		e.Kind = model.Kind(kind)
		e.Detail = detail.String
		e.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
