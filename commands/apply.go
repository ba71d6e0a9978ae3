package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"extcss/dom"
	"extcss/engine"
	"extcss/state"
	"extcss/utils/debug"
)

// Apply runs extended stylesheet against HTML file and writes resulting
// document.
func Apply(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("apply")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errNoSource
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	sheetPath := cmd.Args().Get(1)
	if len(sheetPath) == 0 {
		return errNoStylesheet
	}
	dst := cmd.Args().Get(2)
	if cmd.Args().Len() > 3 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[3:]))
	}
	env.Overwrite = cmd.Bool("overwrite")

	sheet, err := readSource(env, sheetPath)
	if err != nil {
		return fmt.Errorf("unable to read stylesheet: %w", err)
	}

	var out io.Writer = output(cmd)
	if len(dst) > 0 {
		if dst, err = filepath.Abs(dst); err != nil {
			return err
		}
		f, err := createOutput(dst, env.Overwrite, log)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("stylesheet", sheetPath))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	// document is treated as still loading so engine does its second pass
	// the way it would in a browser
	doc, err := readDocument(env, src, log, dom.WithReadyState(dom.ReadyInteractive))
	if err != nil {
		return err
	}

	data, err := process(ctx, doc, string(sheet), env, log)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("unable to write result: %w", err)
	}
	if env.Rpt != nil && len(dst) > 0 {
		env.Rpt.Store("result"+filepath.Ext(dst), dst)
	}
	return nil
}

// process applies stylesheet, waits for re-application caused by the
// document becoming complete and renders result.
func process(ctx context.Context, doc *dom.Document, sheet string, env *state.LocalEnv, log *zap.Logger) ([]byte, error) {
	loop := engine.NewLoop()
	e, err := engine.New(&engine.Options{
		StyleSheet: sheet,
		Document:   doc,
		Config:     env.EngineConfig(),
		Scheduler:  loop,
		Log:        log,
	})
	if err != nil {
		return nil, err
	}
	defer e.Dispose()

	if ws := e.Stylesheet().Warnings; env.Rpt != nil && len(ws) > 0 {
		env.Rpt.StoreData("warnings.txt", []byte(strings.Join(ws, "\n")+"\n"))
	}

	if err := e.Apply(); err != nil {
		return nil, err
	}
	doc.SetReadyState(dom.ReadyComplete)
	if err := loop.Wait(ctx); err != nil {
		return nil, err
	}

	var styled, removed int
	for _, ae := range e.Affected() {
		if ae.Removed {
			removed++
		} else {
			styled++
		}
	}
	log.Info("Stylesheet applied",
		zap.Int("rules", len(e.Stylesheet().Rules)),
		zap.Int("styled", styled),
		zap.Int("removed", removed))

	if env.Rpt != nil {
		env.Rpt.StoreData("affected.txt", dumpAffected(e.Affected()))
		if timings := e.Timings(); len(timings) > 0 {
			env.Rpt.StoreData("timings.txt", formatTimings(timings))
		}
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return nil, fmt.Errorf("unable to render result: %w", err)
	}
	return buf.Bytes(), nil
}

func formatTimings(timings []engine.Timing) []byte {
	var buf bytes.Buffer
	for _, t := range timings {
		fmt.Fprintf(&buf, "%s\tcalls=%d matched=%d total=%s average=%s max=%s\n",
			t.Selector, t.Calls, t.Matched, t.Total, t.Average(), t.Max)
	}
	return buf.Bytes()
}

// dumpAffected describes what engine did to every element.
func dumpAffected(affected []*engine.AffectedElement) []byte {
	tw := debug.NewTreeWriter()
	for _, ae := range affected {
		if ae.Removed {
			tw.Line(0, "%s (removed)", dom.CSSPath(ae.Node))
		} else {
			tw.Line(0, "%s", dom.CSSPath(ae.Node))
		}
		tw.StartTag(1, ae.Node)
		if ae.HadStyle {
			tw.Field(1, "original style", ae.OriginalStyle)
		}
		for _, r := range ae.Rules {
			tw.Line(1, "rule: %s", r.Selector.String())
		}
	}
	return tw.Bytes()
}

func createOutput(dst string, overwrite bool, log *zap.Logger) (*os.File, error) {
	if _, err := os.Stat(dst); err == nil {
		if !overwrite {
			return nil, fmt.Errorf("output file already exists: %s", dst)
		}
		log.Warn("Overwriting existing file", zap.String("file", dst))
	} else if !os.IsNotExist(err) {
		return nil, err
	} else if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, fmt.Errorf("unable to create output directory: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("unable to create output file: %w", err)
	}
	return f, nil
}
