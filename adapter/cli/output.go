package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ErrJobFailed is returned after a failed job's outcome has been printed.
var ErrJobFailed = errors.New("job failed")

// ErrNotConfigured is returned when the CLI runs without a container.
var ErrNotConfigured = errors.New("teamflow is not configured: check DATABASE_URL or SQLITE_PATH")

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RunJob invokes the named job with payload and prints the outcome.
func RunJob(cmd *cobra.Command, name string, payload any) error {
	a := GetApp()
	if a == nil || a.Invoker == nil {
		return ErrNotConfigured
	}
	job, ok := a.Jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		raw = b
	}

	out := a.Invoker.Invoke(cmd.Context(), job, raw)
	if err := PrintJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if !out.Success {
		return ErrJobFailed
	}
	return nil
}
