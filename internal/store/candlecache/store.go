package candlecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"papersim/internal/market"
)

// Manifest 记录某个 source/symbol 最近一次写入的统计信息。
type Manifest struct {
	Source    string
	Symbol    string
	Rows      int64
	MinTime   int64
	MaxTime   int64
	FetchedAt time.Time
}

// Store 把各数据源拉取到的 K 线缓存在单个 sqlite 文件中。
type Store struct {
	db   *sql.DB
	path string
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("candle cache path 不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save 用 candles 整体替换 source/symbol 的缓存，并刷新 manifest。
func (s *Store) Save(ctx context.Context, source, symbol string, candles []market.Candle, fetchedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candles WHERE source = ? AND symbol = ?`, source, symbol); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (source, symbol, t, o, h, l, c, v)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, symbol, t) DO UPDATE SET
		    o=excluded.o,
		    h=excluded.h,
		    l=excluded.l,
		    c=excluded.c,
		    v=excluded.v`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, source, symbol, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO manifest (source, symbol, rows, min_time, max_time, fetched_at)
		SELECT ?, ?, COUNT(1), COALESCE(MIN(t), 0), COALESCE(MAX(t), 0), ?
		FROM candles WHERE source = ? AND symbol = ?
		ON CONFLICT(source, symbol) DO UPDATE SET
		    rows=excluded.rows,
		    min_time=excluded.min_time,
		    max_time=excluded.max_time,
		    fetched_at=excluded.fetched_at`,
		source, symbol, fetchedAt.UnixMilli(), source, symbol); err != nil {
		return err
	}
	return tx.Commit()
}

// Load 返回缓存的 K 线与 manifest；没有缓存时 ok=false。
func (s *Store) Load(ctx context.Context, source, symbol string) ([]market.Candle, Manifest, bool, error) {
	m, err := s.Manifest(ctx, source, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Manifest{}, false, nil
	}
	if err != nil {
		return nil, Manifest{}, false, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT t, o, h, l, c, v FROM candles WHERE source = ? AND symbol = ? ORDER BY t`, source, symbol)
	if err != nil {
		return nil, Manifest{}, false, err
	}
	defer rows.Close()
	out := make([]market.Candle, 0, m.Rows)
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, Manifest{}, false, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, Manifest{}, false, err
	}
	return out, m, true, nil
}

func (s *Store) Manifest(ctx context.Context, source, symbol string) (Manifest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT source, symbol, rows, min_time, max_time, fetched_at FROM manifest WHERE source = ? AND symbol = ?`, source, symbol)
	var (
		m         Manifest
		fetchedAt int64
	)
	if err := row.Scan(&m.Source, &m.Symbol, &m.Rows, &m.MinTime, &m.MaxTime, &fetchedAt); err != nil {
		return Manifest{}, err
	}
	m.FetchedAt = time.UnixMilli(fetchedAt)
	return m, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			source TEXT NOT NULL,
			symbol TEXT NOT NULL,
			t      INTEGER NOT NULL,
			o      REAL NOT NULL,
			h      REAL NOT NULL,
			l      REAL NOT NULL,
			c      REAL NOT NULL,
			v      REAL NOT NULL,
			PRIMARY KEY (source, symbol, t)
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			source     TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			rows       INTEGER NOT NULL DEFAULT 0,
			min_time   INTEGER NOT NULL DEFAULT 0,
			max_time   INTEGER NOT NULL DEFAULT 0,
			fetched_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (source, symbol)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
