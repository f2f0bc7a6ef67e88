package entity

import (
	"time"
)

// StockPrice is one daily OHLCV bar. The table is populated by the ingestion
// collaborator; this service only reads it.
type StockPrice struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Symbol    string    `json:"symbol" gorm:"size:20;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (StockPrice) TableName() string {
	return "stock_prices"
}
