// Package commands implements program subcommands.
package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"extcss/archive"
	"extcss/config"
	"extcss/dom"
	"extcss/state"
)

var (
	errNoSource     = errors.New("no input source has been specified")
	errNoSelector   = errors.New("no selector has been specified")
	errNoStylesheet = errors.New("no stylesheet has been specified")
)

// readSource reads regular file or archive entry, copy is kept in debug
// report.
func readSource(env *state.LocalEnv, path string) ([]byte, error) {
	src, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("unable to read (%s): %w", src.Name, err)
	}
	if env.Rpt != nil {
		env.Rpt.StoreData("input/"+config.CleanFileName(filepath.Base(src.Name)), data)
	}
	return data, nil
}

// readDocument loads HTML detecting its encoding from BOM and meta elements,
// everything is converted to UTF-8.
func readDocument(env *state.LocalEnv, path string, log *zap.Logger, opts ...dom.Option) (*dom.Document, error) {
	data, err := readSource(env, path)
	if err != nil {
		return nil, err
	}

	r, err := charset.NewReader(bytes.NewReader(data), "")
	if err != nil {
		return nil, fmt.Errorf("unable to detect source encoding: %w", err)
	}
	doc, err := dom.Parse(r, append(opts, dom.WithLogger(log))...)
	if err != nil {
		return nil, fmt.Errorf("unable to read source (%s): %w", filepath.Base(path), err)
	}
	return doc, nil
}

// output returns writer for command results.
func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
