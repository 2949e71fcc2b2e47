package models

import "time"

// SignalAction is the directional call of a fused signal.
type SignalAction string

const (
	SignalActionBuy  SignalAction = "BUY"
	SignalActionSell SignalAction = "SELL"
	SignalActionHold SignalAction = "HOLD"
)

// SignalStrength is a qualitative confidence tag derived from vote agreement,
// not a probability.
type SignalStrength string

const (
	SignalStrengthWeak   SignalStrength = "WEAK"
	SignalStrengthStrong SignalStrength = "STRONG"
)

// Vote is one indicator's independent contribution to a signal.
type Vote string

const (
	VoteBuy     Vote = "BUY"
	VoteSell    Vote = "SELL"
	VoteNeutral Vote = "NEUTRAL"
)

// VoteSet holds one vote per supported indicator. A fixed-field record rather
// than a map so an unsupported indicator is a compile error, not a runtime
// surprise.
type VoteSet struct {
	RSI       Vote `json:"rsi"`
	MACD      Vote `json:"macd"`
	Bollinger Vote `json:"bollinger"`
	Forecast  Vote `json:"forecast"`
}

// Each calls fn for every vote in a stable order matching SupportedIndicators.
func (v VoteSet) Each(fn func(name string, vote Vote)) {
	fn("rsi", v.RSI)
	fn("macd", v.MACD)
	fn("bollinger", v.Bollinger)
	fn("forecast", v.Forecast)
}

// Signal is the fused directional trading signal for one timeframe. It is
// computed fresh from the latest bar on each request; identical inputs always
// produce an identical Signal.
type Signal struct {
	Timeframe         Timeframe      `json:"timeframe"`
	Timestamp         time.Time      `json:"timestamp"`
	Action            SignalAction   `json:"action"`
	Strength          SignalStrength `json:"strength"`
	CurrentPrice      float64        `json:"current_price"`
	StopLoss          *float64       `json:"stop_loss"`
	TakeProfit        *float64       `json:"take_profit"`
	ComponentVotes    VoteSet        `json:"component_votes"`
	IndicatorSnapshot IndicatorSet   `json:"indicator_snapshot"`
}
