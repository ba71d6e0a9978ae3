// Package selector implements extended CSS selectors: tokenizer, registry of
// extended pseudo-classes, compiler and strategy selection. Everything lives
// in Engine which owns caches and the registry, there is no package level
// state.
package selector

import (
	"errors"
	"fmt"
	"sync"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"extcss/dom"
)

var (
	ErrUnknownPseudoClass = errors.New("unknown pseudo-class")
	ErrInvalidArgument    = errors.New("invalid pseudo-class argument")
	ErrTerminalPosition   = errors.New("pseudo-class must be the last in selector")
)

// DefaultCacheSize is used when engine is created without explicit cache size.
const DefaultCacheSize = 50

type tokenKey struct {
	text     string
	tolerant bool
}

type tokenEntry struct {
	res TokenizeResult
	err error
}

// Engine tokenizes and compiles selectors. It is safe to share Engine
// between documents, compiled selectors are immutable.
type Engine struct {
	log       *zap.Logger
	cacheSize int

	tokens    *lru[tokenKey, tokenEntry]
	selectors *lru[string, *Selector]

	once     sync.Once
	pseudos  registry
	compiler *compiler
}

// Option configures Engine.
type Option func(*Engine)

// WithCacheSize sets capacity of tokenizer and compiled selectors caches.
func WithCacheSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.cacheSize = size
		}
	}
}

// WithLogger sets logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates selector engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		log:       zap.NewNop(),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("selector")
	e.tokens = newLRU[tokenKey, tokenEntry](e.cacheSize)
	e.selectors = newLRU[string, *Selector](e.cacheSize)
	return e
}

// registry is populated on first use.
func (e *Engine) registry() registry {
	e.once.Do(func() {
		e.pseudos = builtinPseudoClasses()
		e.compiler = &compiler{engine: e}
	})
	return e.pseudos
}

// Tokenize splits selector text into token groups. Results (including
// errors) are cached, returned groups must not be modified.
func (e *Engine) Tokenize(text string, tolerant bool) (TokenizeResult, error) {
	key := tokenKey{text: text, tolerant: tolerant}
	if entry, ok := e.tokens.get(key); ok {
		return entry.res, entry.err
	}
	res, err := tokenize(text, tolerant)
	e.tokens.put(key, tokenEntry{res: res, err: err})
	return res, err
}

// Compile produces executable selector choosing the cheapest strategy able
// to evaluate it. Compiled selectors are cached by text.
func (e *Engine) Compile(text string) (*Selector, error) {
	if sel, ok := e.selectors.get(text); ok {
		return sel, nil
	}
	sel, err := e.compile(text, false)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", text, err)
	}
	e.selectors.put(text, sel)
	e.log.Debug("Selector compiled", zap.String("selector", text), zap.Stringer("strategy", sel.strategy.Kind))
	return sel, nil
}

// Query compiles selector and returns matching elements of the document.
func (e *Engine) Query(doc *dom.Document, text string) ([]*html.Node, error) {
	sel, err := e.Compile(text)
	if err != nil {
		return nil, err
	}
	return sel.QuerySelectorAll(doc), nil
}

// compile classifies selector. When forceCustom is set native and split
// strategies are not considered, this is used to check that all strategies
// agree.
func (e *Engine) compile(text string, forceCustom bool) (*Selector, error) {
	pseudos := e.registry()

	res, err := e.Tokenize(text, false)
	if err != nil {
		if errors.Is(err, ErrEmptySelector) || forceCustom {
			return nil, err
		}
		// pseudo-elements and other syntax we do not tokenize
		if group, nerr := cascadia.ParseGroup(text); nerr == nil {
			return newSelector(text, nil, nil, Strategy{Kind: NativeDelegate, native: group}), nil
		}
		return nil, err
	}

	reordered := make([]Group, 0, len(res.Groups))
	for _, g := range res.Groups {
		reordered = append(reordered, g.reorder(pseudos.isPositional))
	}

	if st, ok, err := e.compiler.terminalStrategy(res.Groups); err != nil {
		return nil, err
	} else if ok {
		return newSelector(text, res.Groups, reordered, st), nil
	}

	if !forceCustom {
		if !e.isExtended(res.Groups, 0) {
			if group, nerr := cascadia.ParseGroup(text); nerr == nil {
				return newSelector(text, res.Groups, reordered, Strategy{Kind: NativeDelegate, native: group}), nil
			}
		}
		if st, ok := e.compiler.splitStrategy(res.Groups, reordered); ok {
			return newSelector(text, res.Groups, reordered, st), nil
		}
	}

	groups := make([]*compiledGroup, 0, len(reordered))
	for _, g := range reordered {
		cg, err := e.compiler.compileGroup(g, false)
		if err != nil {
			return nil, err
		}
		groups = append(groups, cg)
	}
	return newSelector(text, res.Groups, reordered, Strategy{Kind: CustomWhole, groups: groups}), nil
}

// isExtended reports if any token requires our own evaluation. Arguments of
// pseudo-classes native engine supports are checked recursively.
func (e *Engine) isExtended(groups []Group, depth int) bool {
	if depth > maxNesting {
		return true
	}
	for _, g := range groups {
		for _, t := range g {
			if t.Type != TokenPseudo {
				continue
			}
			pc, ok := e.pseudos[t.Name()]
			if !ok {
				continue
			}
			if pc.extended {
				return true
			}
			if !t.HasArg {
				continue
			}
			inner, err := e.Tokenize(t.Arg(), false)
			if err != nil || e.isExtended(inner.Groups, depth+1) {
				return true
			}
		}
	}
	return false
}

const maxNesting = 32
