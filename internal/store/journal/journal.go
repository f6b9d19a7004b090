package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"papersim/internal/engine"
)

const maxListLimit = 1000

// SessionRecord 是一次会话启动的审计记录。
type SessionRecord struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Candles   int       `json:"candles"`
	StartedAt time.Time `json:"startedAt"`
}

// Journal 是只追加的会话/成交审计日志，从不回读进引擎。
type Journal struct {
	db *gorm.DB
}

var _ engine.Recorder = (*Journal)(nil)

func Open(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&sessionModel{}, &fillModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (j *Journal) RecordSession(ctx context.Context, info engine.SessionInfo) error {
	id := info.ID
	if id == "" {
		id = uuid.NewString()
	}
	started := info.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	rec := sessionModel{
		ID:            id,
		Symbol:        info.Symbol,
		Candles:       info.Total,
		StartedAtUnix: started.UnixMilli(),
	}
	return j.db.WithContext(ctx).Create(&rec).Error
}

func (j *Journal) RecordFill(ctx context.Context, fill engine.Fill) error {
	positions, err := json.Marshal(fill.Account.Positions)
	if err != nil {
		return fmt.Errorf("journal: encode positions: %w", err)
	}
	id := fill.ID
	if id == "" {
		id = uuid.NewString()
	}
	rec := fillModel{
		ID:             id,
		SessionID:      fill.SessionID,
		Symbol:         fill.Symbol,
		Side:           string(fill.Side),
		Qty:            fill.Qty,
		Price:          fill.Price,
		BarTime:        fill.BarTime,
		Balance:        fill.Account.Balance,
		RealizedPnL:    fill.Account.RealizedPnL,
		PositionsJSON:  datatypes.JSON(positions),
		ExecutedAtUnix: fill.ExecutedAt.UnixMilli(),
	}
	return j.db.WithContext(ctx).Create(&rec).Error
}

// ListFills 返回最近的成交，按时间倒序；sessionID 为空时不过滤。
func (j *Journal) ListFills(ctx context.Context, sessionID string, limit int) ([]engine.Fill, error) {
	limit = clampLimit(limit)
	var rows []fillModel
	q := j.db.WithContext(ctx).Model(&fillModel{})
	if sessionID = strings.TrimSpace(sessionID); sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if err := q.Order("executed_at DESC").Order("rowid DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]engine.Fill, 0, len(rows))
	for _, row := range rows {
		fill := engine.Fill{
			ID:         row.ID,
			SessionID:  row.SessionID,
			Symbol:     row.Symbol,
			Side:       engine.Side(row.Side),
			Qty:        row.Qty,
			Price:      row.Price,
			BarTime:    row.BarTime,
			ExecutedAt: time.UnixMilli(row.ExecutedAtUnix),
			Account: engine.AccountSnapshot{
				Balance:     row.Balance,
				RealizedPnL: row.RealizedPnL,
				MarkPrice:   row.Price,
			},
		}
		if len(row.PositionsJSON) > 0 {
			if err := json.Unmarshal(row.PositionsJSON, &fill.Account.Positions); err != nil {
				return nil, fmt.Errorf("journal: decode positions for %s: %w", row.ID, err)
			}
		}
		out = append(out, fill)
	}
	return out, nil
}

func (j *Journal) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	var rows []sessionModel
	if err := j.db.WithContext(ctx).Order("started_at DESC").Limit(clampLimit(limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]SessionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, SessionRecord{
			ID:        row.ID,
			Symbol:    row.Symbol,
			Candles:   row.Candles,
			StartedAt: time.UnixMilli(row.StartedAtUnix),
		})
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
