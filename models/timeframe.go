package models

import (
	"errors"
	"fmt"
	"time"
)

// Timeframe is the bar aggregation period a price series and its signal are
// computed over. Each timeframe is independent.
type Timeframe string

const (
	Timeframe1h Timeframe = "1h"
	Timeframe4h Timeframe = "4h"
	Timeframe1d Timeframe = "1d"
	Timeframe1w Timeframe = "1w"
)

// ErrInvalidTimeframe is returned when a request names an unrecognized timeframe.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// AllTimeframes returns the recognized timeframes in ascending bar duration.
func AllTimeframes() []Timeframe {
	return []Timeframe{Timeframe1h, Timeframe4h, Timeframe1d, Timeframe1w}
}

// ParseTimeframe validates a raw timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case Timeframe1h, Timeframe4h, Timeframe1d, Timeframe1w:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
}

// Duration returns the bar period, used to project forecast timestamps
// past the last known bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	case Timeframe1w:
		return 7 * 24 * time.Hour
	}
	return 0
}

func (tf Timeframe) String() string {
	return string(tf)
}
