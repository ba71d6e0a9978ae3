package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"extcss/dom"
	"extcss/selector"
)

// Query compiles selector and returns elements currently matching it in
// document order. Unless noTiming is set elapsed time is logged.
func Query(doc *dom.Document, selectorText string, noTiming bool, log *zap.Logger) ([]*html.Node, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("engine")

	sel, err := selector.NewEngine(selector.WithLogger(log)).Compile(selectorText)
	if err != nil {
		return nil, fmt.Errorf("unable to query: %w", err)
	}

	start := time.Now()
	nodes := sel.QuerySelectorAll(doc)
	if !noTiming {
		log.Info("Selector query",
			zap.String("selector", selectorText),
			zap.Stringer("strategy", sel.Strategy()),
			zap.Int("matched", len(nodes)),
			zap.Duration("elapsed", time.Since(start)))
	}
	return nodes, nil
}
