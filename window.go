package payout

import (
	"fmt"
	"time"
)

// Window is a daily interval in "HH:MM" local time. Both ends are inclusive:
// a 09:00-09:40 window is open at 09:40:00 and closed a second later. A
// window whose end is before its start wraps past midnight.
type Window struct {
	Start string `json:"start" mapstructure:"start" yaml:"start"`
	End   string `json:"end" mapstructure:"end" yaml:"end"`
}

func (w Window) String() string { return w.Start + "-" + w.End }

// span is a Window in seconds after midnight.
type span struct {
	start, end int
}

func (s span) contains(sec int) bool {
	if s.start <= s.end {
		return sec >= s.start && sec <= s.end
	}
	return sec >= s.start || sec <= s.end
}

func compileWindows(windows []Window) ([]span, error) {
	spans := make([]span, 0, len(windows))
	for _, w := range windows {
		start, err := parseClock(w.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: bidding window %s: %w", ErrInvalidConfig, w, err)
		}
		end, err := parseClock(w.End)
		if err != nil {
			return nil, fmt.Errorf("%w: bidding window %s: %w", ErrInvalidConfig, w, err)
		}
		if start == end {
			return nil, fmt.Errorf("%w: bidding window %s is empty", ErrInvalidConfig, w)
		}
		spans = append(spans, span{start: start, end: end})
	}
	return spans, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*3600 + t.Minute()*60, nil
}

// InBiddingWindow reports whether t falls inside a configured bidding
// window. It is always true when no windows are configured and always false
// when the window configuration is invalid.
func (e *Engine) InBiddingWindow(t time.Time) bool {
	if e.windowErr != nil {
		return false
	}
	if len(e.windows) == 0 {
		return true
	}
	local := t.In(e.loc)
	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()
	for _, s := range e.windows {
		if s.contains(sec) {
			return true
		}
	}
	return false
}
