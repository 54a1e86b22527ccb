package output

import (
	"encoding/json"
	"fmt"
)

// JSONWriter writes the result store as a JSON document keyed by revision
// id, each value holding the analyzer's variables and metadata. This is the
// only externally persisted artifact the traversal produces.
type JSONWriter struct{}

// Write outputs the report as JSON.
func (w *JSONWriter) Write(report *Report, options Options) error {
	out, file, err := openOutputWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report.Revisions); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
