package engine

import (
	"maps"
	"slices"
	"time"

	"github.com/maruel/natural"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Timing accumulates selector query statistics of rules with debugging
// enabled.
type Timing struct {
	Selector string
	Calls    int
	Matched  int // elements matched by the last call
	Total    time.Duration
	Max      time.Duration
}

// Average returns mean duration of a single query.
func (t Timing) Average() time.Duration {
	if t.Calls == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Calls)
}

func (t Timing) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("selector", t.Selector)
	enc.AddInt("calls", t.Calls)
	enc.AddInt("matched", t.Matched)
	enc.AddDuration("total", t.Total)
	enc.AddDuration("average", t.Average())
	enc.AddDuration("max", t.Max)
	return nil
}

type timings map[string]*Timing

func (ts timings) record(selector string, elapsed time.Duration, matched int) {
	t, ok := ts[selector]
	if !ok {
		t = &Timing{Selector: selector}
		ts[selector] = t
	}
	t.Calls++
	t.Matched = matched
	t.Total += elapsed
	t.Max = max(t.Max, elapsed)
}

// sorted returns copies ordered naturally by selector text.
func (ts timings) sorted() []Timing {
	keys := slices.SortedFunc(maps.Keys(ts), func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})
	out := make([]Timing, 0, len(keys))
	for _, k := range keys {
		out = append(out, *ts[k])
	}
	return out
}

// Timings returns statistics collected so far.
func (e *Engine) Timings() []Timing {
	return e.timings.sorted()
}

// logTimings emits statistics once, after the first pass which timed
// anything.
func (e *Engine) logTimings() {
	if e.timingsLogged || len(e.timings) == 0 {
		return
	}
	e.timingsLogged = true
	e.log.Info("Selector timings", zap.Objects("timings", e.timings.sorted()))
}
