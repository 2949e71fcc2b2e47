package models

import "time"

// IndicatorSet holds the derived indicators for one bar. Fields are pointers
// because an indicator is undefined until its warm-up window is satisfied;
// callers must treat nil as "undefined", never as zero.
type IndicatorSet struct {
	Timestamp     time.Time `json:"timestamp"`
	SMA20         *float64  `json:"sma_20,omitempty"`
	EMA12         *float64  `json:"ema_12,omitempty"`
	EMA26         *float64  `json:"ema_26,omitempty"`
	RSI14         *float64  `json:"rsi_14,omitempty"`
	MACD          *float64  `json:"macd,omitempty"`
	MACDSignal    *float64  `json:"macd_signal,omitempty"`
	MACDHistogram *float64  `json:"macd_histogram,omitempty"`
	BBUpper       *float64  `json:"bb_upper,omitempty"`
	BBMiddle      *float64  `json:"bb_middle,omitempty"`
	BBLower       *float64  `json:"bb_lower,omitempty"`
}

// SupportedIndicators enumerates the indicator names that contribute votes,
// for reporting layers that need a stable list.
func SupportedIndicators() []string {
	return []string{"rsi", "macd", "bollinger", "forecast"}
}
