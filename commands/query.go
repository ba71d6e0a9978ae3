package commands

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"extcss/dom"
	"extcss/engine"
	"extcss/state"
)

// Query prints elements of HTML file matched by extended selector.
func Query(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("query")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errNoSource
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	sel := cmd.Args().Get(1)
	if len(sel) == 0 {
		return errNoSelector
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many arguments", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}
	env.NoTiming = cmd.Bool("no-timing")

	doc, err := readDocument(env, src, log)
	if err != nil {
		return err
	}

	nodes, err := engine.Query(doc, sel, env.NoTiming, log)
	if err != nil {
		return err
	}
	return printNodes(cmd, nodes, cmd.Bool("html"))
}

func printNodes(cmd *cli.Command, nodes []*html.Node, outer bool) error {
	w := output(cmd)
	for _, n := range nodes {
		if !outer {
			if _, err := fmt.Fprintln(w, dom.CSSPath(n)); err != nil {
				return err
			}
			continue
		}
		var buf bytes.Buffer
		if err := html.Render(&buf, n); err != nil {
			return fmt.Errorf("unable to render element: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n\t%s\n", dom.CSSPath(n), buf.String()); err != nil {
			return err
		}
	}
	return nil
}
