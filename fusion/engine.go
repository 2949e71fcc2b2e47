// Package fusion combines indicator-derived votes and the forecast direction
// into a single directional trading signal with risk levels. Fuse is a pure
// function of its inputs so identical (price, indicators, forecast) tuples
// always yield identical signals.
package fusion

import (
	"gold-trader/config"
	"gold-trader/models"
)

const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// totalVoters is the number of independent voters feeding a signal, matching
// models.SupportedIndicators.
const totalVoters = 4

// Fuse produces the signal for one bar. prev is the indicator set of the bar
// before it, needed to detect a MACD histogram crossing; forecast is the
// first-step forecast point, or nil when no model is available. Both are
// optional and degrade the corresponding vote to NEUTRAL.
func Fuse(tf models.Timeframe, price float64, ind models.IndicatorSet, prev *models.IndicatorSet, forecast *models.ForecastPoint, cfg config.SignalConfig) models.Signal {
	votes := models.VoteSet{
		RSI:       rsiVote(ind),
		MACD:      macdVote(ind, prev),
		Bollinger: bollingerVote(price, ind),
		Forecast:  forecastVote(price, forecast),
	}

	var buys, sells int
	votes.Each(func(_ string, v models.Vote) {
		switch v {
		case models.VoteBuy:
			buys++
		case models.VoteSell:
			sells++
		}
	})

	action := models.SignalActionHold
	agreeing := 0
	switch {
	case buys > sells:
		action = models.SignalActionBuy
		agreeing = buys
	case sells > buys:
		action = models.SignalActionSell
		agreeing = sells
	}

	strength := models.SignalStrengthWeak
	if action != models.SignalActionHold &&
		float64(agreeing)/float64(totalVoters) >= cfg.SupermajorityFraction {
		strength = models.SignalStrengthStrong
	}

	signal := models.Signal{
		Timeframe:         tf,
		Timestamp:         ind.Timestamp,
		Action:            action,
		Strength:          strength,
		CurrentPrice:      price,
		ComponentVotes:    votes,
		IndicatorSnapshot: ind,
	}

	if action != models.SignalActionHold {
		stop, take := riskLevels(action, price, cfg)
		signal.StopLoss = &stop
		signal.TakeProfit = &take
	}
	return signal
}

// riskLevels places the stop a fixed fraction from price in the adverse
// direction and the target at RiskRewardRatio times that distance in the
// favorable direction.
func riskLevels(action models.SignalAction, price float64, cfg config.SignalConfig) (stop, take float64) {
	risk := price * cfg.StopLossPercent / 100
	if action == models.SignalActionBuy {
		stop = price - risk
		take = price + risk*cfg.RiskRewardRatio
		return stop, take
	}
	stop = price + risk
	take = price - risk*cfg.RiskRewardRatio
	return stop, take
}

func rsiVote(ind models.IndicatorSet) models.Vote {
	if ind.RSI14 == nil {
		return models.VoteNeutral
	}
	switch {
	case *ind.RSI14 < rsiOversold:
		return models.VoteBuy
	case *ind.RSI14 > rsiOverbought:
		return models.VoteSell
	}
	return models.VoteNeutral
}

// macdVote fires only on a histogram sign crossing between the previous bar
// and the current one, not on the sign itself.
func macdVote(ind models.IndicatorSet, prev *models.IndicatorSet) models.Vote {
	if ind.MACDHistogram == nil || prev == nil || prev.MACDHistogram == nil {
		return models.VoteNeutral
	}
	cur, before := *ind.MACDHistogram, *prev.MACDHistogram
	switch {
	case before <= 0 && cur > 0:
		return models.VoteBuy
	case before >= 0 && cur < 0:
		return models.VoteSell
	}
	return models.VoteNeutral
}

func bollingerVote(price float64, ind models.IndicatorSet) models.Vote {
	if ind.BBUpper == nil || ind.BBLower == nil {
		return models.VoteNeutral
	}
	switch {
	case price < *ind.BBLower:
		return models.VoteBuy
	case price > *ind.BBUpper:
		return models.VoteSell
	}
	return models.VoteNeutral
}

func forecastVote(price float64, forecast *models.ForecastPoint) models.Vote {
	if forecast == nil {
		return models.VoteNeutral
	}
	switch {
	case forecast.PredictedClose > price:
		return models.VoteBuy
	case forecast.PredictedClose < price:
		return models.VoteSell
	}
	return models.VoteNeutral
}
