// Package engine applies extended stylesheets to a live document: it styles
// or removes matched elements, re-applies rules when document changes,
// guards applied styles against being overwritten and reverts everything on
// dispose.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"extcss/config"
	"extcss/css"
	"extcss/dom"
	"extcss/selector"
)

var (
	ErrNoOptions  = errors.New("engine options are not provided")
	ErrNoDocument = errors.New("document is not provided")
	ErrDisposed   = errors.New("engine is disposed")
)

// Defaults used for zero values of config.EngineConfig.
const (
	DefaultApplyDelay      = 100 * time.Millisecond
	DefaultProtectionLimit = 50
	DefaultRemovalLimit    = 50
	DefaultIgnoredTimeout  = 10 * time.Millisecond
)

var DefaultIgnoredEvents = []string{"mouseover", "mouseleave", "mouseenter", "mouseout"}

// State of the engine lifecycle.
type State int

const (
	StateIdle State = iota
	StateObserving
	StateApplying
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateObserving:
		return "observing"
	case StateApplying:
		return "applying"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options to create Engine. StyleSheet and Document are required.
type Options struct {
	StyleSheet string
	// BeforeStyleApplied is called before rules are applied to an element.
	// It may return changed record or nil to skip the element.
	BeforeStyleApplied func(*AffectedElement) *AffectedElement
	Document           *dom.Document
	Config             *config.EngineConfig
	// Scheduler runs debounced re-apply, new Loop is used when nil.
	Scheduler Scheduler
	// Clock is used by ignored mutations heuristic, time.Now when nil.
	Clock func() time.Time
	Log   *zap.Logger
}

// Engine keeps parsed stylesheet applied to the document.
type Engine struct {
	id     string
	log    *zap.Logger
	doc    *dom.Document
	cfg    config.EngineConfig
	sheet  *css.Stylesheet
	before func(*AffectedElement) *AffectedElement
	sched  Scheduler
	now    func() time.Time

	state         State
	affected      map[*html.Node]*AffectedElement
	removals      map[string]int
	observer      *dom.MutationObserver
	unlisten      []func()
	lastEvent     time.Time
	waitingReady  bool
	timings       timings
	timingsLogged bool
}

// New parses stylesheet and prepares engine, nothing is applied until Apply
// is called.
func New(opts *Options) (*Engine, error) {
	if opts == nil {
		return nil, ErrNoOptions
	}
	if opts.Document == nil {
		return nil, ErrNoDocument
	}

	e := &Engine{
		id:       uuid.NewString(),
		log:      opts.Log,
		doc:      opts.Document,
		cfg:      engineConfig(opts.Config),
		before:   opts.BeforeStyleApplied,
		sched:    opts.Scheduler,
		now:      opts.Clock,
		affected: make(map[*html.Node]*AffectedElement),
		removals: make(map[string]int),
		timings:  make(timings),
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	e.log = e.log.Named("engine").With(zap.String("id", e.id))
	if e.now == nil {
		e.now = time.Now
	}
	if e.sched == nil {
		e.sched = NewLoop(WithClock(e.now))
	}

	sel := selector.NewEngine(selector.WithCacheSize(e.cfg.SelectorCacheSize), selector.WithLogger(e.log))
	sheet, err := css.NewParser(sel, e.log).Parse(opts.StyleSheet)
	if err != nil {
		return nil, fmt.Errorf("unable to parse stylesheet: %w", err)
	}
	e.sheet = sheet

	e.log.Debug("Engine created",
		zap.Int("rules", len(sheet.Rules)),
		zap.Int("warnings", len(sheet.Warnings)),
		zap.Stringer("debug", sheet.Debug))
	return e, nil
}

// engineConfig fills zero values with defaults.
func engineConfig(c *config.EngineConfig) config.EngineConfig {
	var cfg config.EngineConfig
	if c != nil {
		cfg = *c
	}
	if cfg.SelectorCacheSize <= 0 {
		cfg.SelectorCacheSize = selector.DefaultCacheSize
	}
	if cfg.ApplyDelay <= 0 {
		cfg.ApplyDelay = DefaultApplyDelay
	}
	if cfg.ProtectionLimit <= 0 {
		cfg.ProtectionLimit = DefaultProtectionLimit
	}
	if cfg.RemovalLimit <= 0 {
		cfg.RemovalLimit = DefaultRemovalLimit
	}
	if cfg.IgnoredMutations.Events == nil {
		cfg.IgnoredMutations.Events = DefaultIgnoredEvents
	}
	if cfg.IgnoredMutations.Timeout <= 0 {
		cfg.IgnoredMutations.Timeout = DefaultIgnoredTimeout
	}
	return cfg
}

// Stylesheet returns parsed stylesheet.
func (e *Engine) Stylesheet() *css.Stylesheet {
	return e.sheet
}

func (e *Engine) State() State {
	return e.state
}

// Apply runs all rules and starts observing the document. If document is
// still loading rules are applied once more when it is complete. Calling
// Apply again runs rules again.
func (e *Engine) Apply() error {
	if e.state == StateDisposed {
		return ErrDisposed
	}

	e.applyRules()

	if e.doc.ReadyState() != dom.ReadyComplete && !e.waitingReady {
		e.waitingReady = true
		e.doc.OnReady(func() {
			e.waitingReady = false
			if e.state != StateDisposed {
				e.log.Debug("Document is complete, applying rules again")
				e.applyRules()
			}
		})
	}

	e.observe()
	return nil
}

// Dispose stops observing and reverts every affected element. Engine cannot
// be used afterwards.
func (e *Engine) Dispose() {
	if e.state == StateDisposed {
		return
	}
	e.sched.Cancel()
	if e.observer != nil {
		e.observer.Disconnect()
		e.observer = nil
	}
	for _, fn := range e.unlisten {
		fn()
	}
	e.unlisten = nil

	for n, ae := range e.affected {
		e.revert(ae)
		delete(e.affected, n)
	}
	e.state = StateDisposed
	e.log.Debug("Engine disposed")
}

// applyRules is a single pass over all rules.
func (e *Engine) applyRules() {
	prev := e.state
	e.state = StateApplying
	defer func() { e.state = prev }()

	e.withObserverPaused(func() {
		var (
			order []*html.Node
			hits  = make(map[*html.Node][]*css.Rule)
			timed bool
		)
		for i := range e.sheet.Rules {
			rule := &e.sheet.Rules[i]

			start := time.Now()
			nodes := rule.Selector.QuerySelectorAll(e.doc)
			if e.sheet.DebugEnabled(rule) {
				e.timings.record(rule.Selector.String(), time.Since(start), len(nodes))
				timed = true
			}

			for _, n := range nodes {
				if _, ok := hits[n]; !ok {
					order = append(order, n)
				}
				hits[n] = append(hits[n], rule)
			}
		}

		for _, n := range order {
			e.update(n, hits[n])
		}

		for n, ae := range e.affected {
			if _, ok := hits[n]; ok || ae.Removed {
				continue
			}
			e.revert(ae)
			delete(e.affected, n)
		}

		for _, ae := range e.affected {
			if !ae.Removed {
				e.protect(ae)
			}
		}

		if timed {
			e.logTimings()
		}
	})
}

// observe starts document observer and user event listeners once.
func (e *Engine) observe() {
	if e.observer != nil {
		return
	}
	e.observer = e.doc.NewMutationObserver(func(records []dom.MutationRecord, _ *dom.MutationObserver) {
		e.onMutation(records)
	})
	e.observer.Observe(e.doc.Root(), documentObservation)

	for _, typ := range e.cfg.IgnoredMutations.Events {
		e.unlisten = append(e.unlisten, e.doc.AddEventListener(typ, func(dom.Event) {
			e.lastEvent = e.now()
		}))
	}
	e.state = StateObserving
}

var documentObservation = dom.ObserveOptions{
	ChildList:       true,
	Subtree:         true,
	Attributes:      true,
	AttributeFilter: []string{"id", "class"},
}

func (e *Engine) onMutation(records []dom.MutationRecord) {
	if e.state == StateDisposed {
		return
	}
	if e.ignored(records) {
		e.log.Debug("Ignoring mutations after user event", zap.Int("records", len(records)))
		return
	}
	e.sched.ScheduleCoalesced(e.reapply, e.cfg.ApplyDelay)
}

// ignored reports whether records are attribute changes caused by hovering.
func (e *Engine) ignored(records []dom.MutationRecord) bool {
	if e.lastEvent.IsZero() || e.now().Sub(e.lastEvent) > e.cfg.IgnoredMutations.Timeout {
		return false
	}
	for _, r := range records {
		if r.Kind != dom.MutationAttributes {
			return false
		}
	}
	return true
}

func (e *Engine) reapply() {
	if e.state == StateDisposed {
		return
	}
	e.applyRules()
}

// withObserverPaused runs fn with document observer disconnected so engine
// does not react to its own changes.
func (e *Engine) withObserverPaused(fn func()) {
	if e.observer == nil || !e.observer.Observing() {
		fn()
		return
	}
	e.observer.Disconnect()
	defer e.observer.Observe(e.doc.Root(), documentObservation)
	fn()
}
