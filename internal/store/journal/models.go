package journal

import "gorm.io/datatypes"

type sessionModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	Symbol        string `gorm:"column:symbol;index"`
	Candles       int    `gorm:"column:candles"`
	StartedAtUnix int64  `gorm:"column:started_at;index"`
}

func (sessionModel) TableName() string { return "sessions" }

type fillModel struct {
	ID             string         `gorm:"column:id;primaryKey"`
	SessionID      string         `gorm:"column:session_id;index"`
	Symbol         string         `gorm:"column:symbol"`
	Side           string         `gorm:"column:side"`
	Qty            float64        `gorm:"column:qty"`
	Price          float64        `gorm:"column:price"`
	BarTime        int64          `gorm:"column:bar_time"`
	Balance        float64        `gorm:"column:balance"`
	RealizedPnL    float64        `gorm:"column:realized_pnl"`
	PositionsJSON  datatypes.JSON `gorm:"column:positions_json;type:TEXT"`
	ExecutedAtUnix int64          `gorm:"column:executed_at;index"`
}

func (fillModel) TableName() string { return "fills" }
