package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how CLI commands print results.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatText OutputFormat = "text"
)

// Texter is implemented by results with a compact one-line-per-item form,
// used for --output text. Results without one print as YAML.
type Texter interface {
	Text() string
}

var outputFormat = OutputFormatYAML

// SetOutputFormat sets the format used by Output. Unknown names fall back
// to YAML.
func SetOutputFormat(format string) {
	switch f := OutputFormat(format); f {
	case OutputFormatJSON, OutputFormatText:
		outputFormat = f
	default:
		outputFormat = OutputFormatYAML
	}
}

// Output writes data to stdout in the configured format.
func Output(data any) error {
	return OutputTo(os.Stdout, outputFormat, data)
}

// OutputTo writes data to w in the given format.
func OutputTo(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputFormatText:
		if t, ok := data.(Texter); ok {
			_, err := fmt.Fprintln(w, t.Text())
			return err
		}
		return OutputTo(w, OutputFormatYAML, data)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
