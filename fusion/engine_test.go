package fusion

import (
	"testing"
	"time"

	"gold-trader/config"
	"gold-trader/models"
)

func fptr(v float64) *float64 { return &v }

func testSignalConfig() config.SignalConfig {
	return config.SignalConfig{
		SupermajorityFraction: 0.75,
		StopLossPercent:       0.5,
		RiskRewardRatio:       1.5,
	}
}

// fullIndicators builds an IndicatorSet whose votes are controlled per test:
// rsi sets the RSI vote, histNow/histPrev the MACD crossing, and the
// Bollinger bands straddle price unless band overrides them.
func fullIndicators(rsi, histNow, bbLower, bbUpper float64, ts time.Time) models.IndicatorSet {
	return models.IndicatorSet{
		Timestamp:     ts,
		SMA20:         fptr(100),
		EMA12:         fptr(100),
		EMA26:         fptr(100),
		RSI14:         fptr(rsi),
		MACD:          fptr(histNow),
		MACDSignal:    fptr(0),
		MACDHistogram: fptr(histNow),
		BBUpper:       fptr(bbUpper),
		BBMiddle:      fptr((bbUpper + bbLower) / 2),
		BBLower:       fptr(bbLower),
	}
}

func prevWithHistogram(hist float64) *models.IndicatorSet {
	return &models.IndicatorSet{MACDHistogram: fptr(hist)}
}

func TestFuse_VoteCombinations(t *testing.T) {
	ts := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	const price = 100.0

	tests := []struct {
		name         string
		rsi          float64
		histPrev     float64
		histNow      float64
		bbLower      float64
		bbUpper      float64
		forecast     *models.ForecastPoint
		wantAction   models.SignalAction
		wantStrength models.SignalStrength
		wantVotes    models.VoteSet
	}{
		{
			name:     "all four buy is strong",
			rsi:      25, histPrev: -1, histNow: 1, bbLower: 101, bbUpper: 110,
			forecast:     &models.ForecastPoint{PredictedClose: 105},
			wantAction:   models.SignalActionBuy,
			wantStrength: models.SignalStrengthStrong,
			wantVotes:    models.VoteSet{RSI: models.VoteBuy, MACD: models.VoteBuy, Bollinger: models.VoteBuy, Forecast: models.VoteBuy},
		},
		{
			name:     "three of four buy meets supermajority",
			rsi:      25, histPrev: 1, histNow: 2, bbLower: 101, bbUpper: 110,
			forecast:     &models.ForecastPoint{PredictedClose: 105},
			wantAction:   models.SignalActionBuy,
			wantStrength: models.SignalStrengthStrong,
			wantVotes:    models.VoteSet{RSI: models.VoteBuy, MACD: models.VoteNeutral, Bollinger: models.VoteBuy, Forecast: models.VoteBuy},
		},
		{
			name:     "majority of two buys is weak",
			rsi:      25, histPrev: 1, histNow: 2, bbLower: 101, bbUpper: 110,
			forecast:     nil,
			wantAction:   models.SignalActionBuy,
			wantStrength: models.SignalStrengthWeak,
			wantVotes:    models.VoteSet{RSI: models.VoteBuy, MACD: models.VoteNeutral, Bollinger: models.VoteBuy, Forecast: models.VoteNeutral},
		},
		{
			name:     "all four sell is strong",
			rsi:      75, histPrev: 1, histNow: -1, bbLower: 90, bbUpper: 99,
			forecast:     &models.ForecastPoint{PredictedClose: 95},
			wantAction:   models.SignalActionSell,
			wantStrength: models.SignalStrengthStrong,
			wantVotes:    models.VoteSet{RSI: models.VoteSell, MACD: models.VoteSell, Bollinger: models.VoteSell, Forecast: models.VoteSell},
		},
		{
			name:     "two buy two sell ties to hold",
			rsi:      25, histPrev: 1, histNow: -1, bbLower: 90, bbUpper: 99,
			forecast:     &models.ForecastPoint{PredictedClose: 105},
			wantAction:   models.SignalActionHold,
			wantStrength: models.SignalStrengthWeak,
			wantVotes:    models.VoteSet{RSI: models.VoteBuy, MACD: models.VoteSell, Bollinger: models.VoteSell, Forecast: models.VoteBuy},
		},
		{
			name:     "one buy one sell ties to hold",
			rsi:      25, histPrev: 1, histNow: 2, bbLower: 90, bbUpper: 99,
			forecast:     nil,
			wantAction:   models.SignalActionHold,
			wantStrength: models.SignalStrengthWeak,
			wantVotes:    models.VoteSet{RSI: models.VoteBuy, MACD: models.VoteNeutral, Bollinger: models.VoteSell, Forecast: models.VoteNeutral},
		},
		{
			name:     "all neutral holds",
			rsi:      50, histPrev: 1, histNow: 2, bbLower: 90, bbUpper: 110,
			forecast:     &models.ForecastPoint{PredictedClose: price},
			wantAction:   models.SignalActionHold,
			wantStrength: models.SignalStrengthWeak,
			wantVotes:    models.VoteSet{RSI: models.VoteNeutral, MACD: models.VoteNeutral, Bollinger: models.VoteNeutral, Forecast: models.VoteNeutral},
		},
		{
			name:     "sell majority of three is strong",
			rsi:      75, histPrev: 1, histNow: -1, bbLower: 90, bbUpper: 99,
			forecast:     nil,
			wantAction:   models.SignalActionSell,
			wantStrength: models.SignalStrengthStrong,
			wantVotes:    models.VoteSet{RSI: models.VoteSell, MACD: models.VoteSell, Bollinger: models.VoteSell, Forecast: models.VoteNeutral},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := fullIndicators(tt.rsi, tt.histNow, tt.bbLower, tt.bbUpper, ts)
			signal := Fuse(models.Timeframe1h, price, ind, prevWithHistogram(tt.histPrev), tt.forecast, testSignalConfig())

			if signal.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s", signal.Action, tt.wantAction)
			}
			if signal.Strength != tt.wantStrength {
				t.Errorf("Strength = %s, want %s", signal.Strength, tt.wantStrength)
			}
			if signal.ComponentVotes != tt.wantVotes {
				t.Errorf("ComponentVotes = %+v, want %+v", signal.ComponentVotes, tt.wantVotes)
			}
			if signal.CurrentPrice != price {
				t.Errorf("CurrentPrice = %v, want %v", signal.CurrentPrice, price)
			}
			if !signal.Timestamp.Equal(ts) {
				t.Errorf("Timestamp = %v, want the bar's timestamp %v", signal.Timestamp, ts)
			}

			if tt.wantAction == models.SignalActionHold {
				if signal.StopLoss != nil || signal.TakeProfit != nil {
					t.Error("HOLD must carry nil stop_loss and take_profit")
				}
			} else {
				if signal.StopLoss == nil || signal.TakeProfit == nil {
					t.Fatal("directional signal must carry stop_loss and take_profit")
				}
			}
		})
	}
}

func TestFuse_RiskLevels(t *testing.T) {
	ts := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	cfg := testSignalConfig()

	t.Run("buy places stop below and target above", func(t *testing.T) {
		// All four voters agree BUY at price 2000.
		ind := fullIndicators(25, 1, 2001, 2100, ts)
		signal := Fuse(models.Timeframe1d, 2000, ind, prevWithHistogram(-1), &models.ForecastPoint{PredictedClose: 2050}, cfg)

		if signal.Action != models.SignalActionBuy {
			t.Fatalf("Action = %s, want BUY", signal.Action)
		}
		// r = 0.5% of 2000 = 10; ratio 1.5 puts the target 15 above.
		if got, want := *signal.StopLoss, 1990.0; !closeTo(got, want) {
			t.Errorf("StopLoss = %v, want %v", got, want)
		}
		if got, want := *signal.TakeProfit, 2015.0; !closeTo(got, want) {
			t.Errorf("TakeProfit = %v, want %v", got, want)
		}
	})

	t.Run("sell mirrors the levels", func(t *testing.T) {
		ind := fullIndicators(75, -1, 1900, 1999, ts)
		signal := Fuse(models.Timeframe1d, 2000, ind, prevWithHistogram(1), &models.ForecastPoint{PredictedClose: 1950}, cfg)

		if signal.Action != models.SignalActionSell {
			t.Fatalf("Action = %s, want SELL", signal.Action)
		}
		if got, want := *signal.StopLoss, 2010.0; !closeTo(got, want) {
			t.Errorf("StopLoss = %v, want %v", got, want)
		}
		if got, want := *signal.TakeProfit, 1985.0; !closeTo(got, want) {
			t.Errorf("TakeProfit = %v, want %v", got, want)
		}
	})
}

func TestFuse_UndefinedIndicatorsVoteNeutral(t *testing.T) {
	ts := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	signal := Fuse(models.Timeframe1h, 100, models.IndicatorSet{Timestamp: ts}, nil, nil, testSignalConfig())

	if signal.Action != models.SignalActionHold {
		t.Errorf("Action = %s, want HOLD when every indicator is undefined", signal.Action)
	}
	want := models.VoteSet{RSI: models.VoteNeutral, MACD: models.VoteNeutral, Bollinger: models.VoteNeutral, Forecast: models.VoteNeutral}
	if signal.ComponentVotes != want {
		t.Errorf("ComponentVotes = %+v, want all NEUTRAL", signal.ComponentVotes)
	}
}

func TestFuse_MACDNeedsPreviousBar(t *testing.T) {
	ts := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	ind := fullIndicators(50, 2, 90, 110, ts)

	signal := Fuse(models.Timeframe1h, 100, ind, nil, nil, testSignalConfig())
	if signal.ComponentVotes.MACD != models.VoteNeutral {
		t.Errorf("MACD vote without a previous bar = %s, want NEUTRAL", signal.ComponentVotes.MACD)
	}
}

func TestFuse_MACDRequiresCrossingNotSign(t *testing.T) {
	ts := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		prev float64
		cur  float64
		want models.Vote
	}{
		{"negative to positive crosses buy", -0.5, 0.5, models.VoteBuy},
		{"positive to negative crosses sell", 0.5, -0.5, models.VoteSell},
		{"stays positive is neutral", 0.5, 1.0, models.VoteNeutral},
		{"stays negative is neutral", -1.0, -0.5, models.VoteNeutral},
		{"zero to positive crosses buy", 0, 0.5, models.VoteBuy},
		{"zero to negative crosses sell", 0, -0.5, models.VoteSell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := fullIndicators(50, tt.cur, 90, 110, ts)
			signal := Fuse(models.Timeframe1h, 100, ind, prevWithHistogram(tt.prev), nil, testSignalConfig())
			if signal.ComponentVotes.MACD != tt.want {
				t.Errorf("MACD vote = %s, want %s", signal.ComponentVotes.MACD, tt.want)
			}
		})
	}
}

func TestFuse_Deterministic(t *testing.T) {
	ts := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	ind := fullIndicators(25, 1, 101, 110, ts)
	prev := prevWithHistogram(-1)
	forecast := &models.ForecastPoint{PredictedClose: 105}
	cfg := testSignalConfig()

	first := Fuse(models.Timeframe4h, 100, ind, prev, forecast, cfg)
	for i := 0; i < 5; i++ {
		again := Fuse(models.Timeframe4h, 100, ind, prev, forecast, cfg)
		if again.Action != first.Action || again.Strength != first.Strength ||
			again.ComponentVotes != first.ComponentVotes ||
			*again.StopLoss != *first.StopLoss || *again.TakeProfit != *first.TakeProfit {
			t.Fatalf("run %d produced a different signal: %+v vs %+v", i, again, first)
		}
	}
}

func closeTo(a, b float64) bool {
	diff := a - b
	return diff < 1e-9 && diff > -1e-9
}
