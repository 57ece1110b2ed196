package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/engine"
)

// openLedger opens the ledger selected by --dir. The caller closes it.
func openLedger(ctx context.Context) (*engine.Engine, error) {
	eng, err := engine.Open(ctx, engine.Options{
		Dir:    ledgerDir,
		Logger: log.WithField("component", "engine"),
	})
	if err != nil {
		return nil, err
	}

	if logLevel == "" {
		lvl, err := eng.Config().Level()
		if err != nil {
			_ = eng.Close()
			return nil, err
		}
		log.SetLevel(lvl)
	}
	return eng, nil
}

// withLedger runs fn on an open ledger and closes it afterwards.
func withLedger(fn func(ctx context.Context, eng *engine.Engine) error) error {
	ctx := context.Background()
	eng, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			log.WithField("err", cerr).Warn("failed to close ledger")
		}
	}()
	return fn(ctx, eng)
}

// resolveNames maps user references to record names.
func resolveNames(eng *engine.Engine, refs []string) ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		name, err := engine.ResolveRecordName(ref, cwd, eng.Paths().Root)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// parseCount parses the optional [n] argument of undo and redo.
func parseCount(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid count %q: must be a positive integer", args[0])
	}
	return n, nil
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatError formats an error for display.
func formatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON writes a value as JSON to w.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
