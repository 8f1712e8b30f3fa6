package synclog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store 记录每次行情同步的结果，便于排查数据源故障。
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Run 一次同步的落账记录。
type Run struct {
	ID         int64  `json:"id"`
	RunID      string `json:"run_id"`
	Timestamp  int64  `json:"ts"`
	Symbol     string `json:"symbol"`
	AssetType  string `json:"asset_type"`
	Source     string `json:"source"`
	RowsSynced int    `json:"rows_synced"`
	RowsBad    int    `json:"rows_dropped"`
	Error      string `json:"error,omitempty"`
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sync log path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `CREATE TABLE IF NOT EXISTS sync_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		ts INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		asset_type TEXT,
		source TEXT,
		rows_synced INTEGER DEFAULT 0,
		rows_dropped INTEGER DEFAULT 0,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_symbol ON sync_runs(symbol, ts);`
	_, err := s.db.Exec(ddl)
	return err
}

func (s *Store) Append(ctx context.Context, run Run) error {
	if s == nil {
		return nil
	}
	if run.Timestamp == 0 {
		run.Timestamp = time.Now().Unix()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (run_id, ts, symbol, asset_type, source, rows_synced, rows_dropped, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Timestamp, run.Symbol, run.AssetType, run.Source, run.RowsSynced, run.RowsBad, run.Error)
	return err
}

// Recent 返回最近 limit 条同步记录，按时间倒序。
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, ts, symbol, asset_type, source, rows_synced, rows_dropped, COALESCE(error, '')
		 FROM sync_runs ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.RunID, &r.Timestamp, &r.Symbol, &r.AssetType, &r.Source, &r.RowsSynced, &r.RowsBad, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
