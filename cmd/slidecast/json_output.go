package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout. Narration and
// slide text keep their ampersands and angle brackets unescaped.
func writeJSON(cmd *cobra.Command, v any) error {
	return encodeJSON(cmd.OutOrStdout(), v)
}

// writeJSONFile writes v to path, or to stdout when path is empty or "-".
func writeJSONFile(cmd *cobra.Command, path string, v any) error {
	if path == "" || path == "-" {
		return writeJSON(cmd, v)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeJSON(file, v); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
