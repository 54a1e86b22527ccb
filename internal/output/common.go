package output

import (
	"io"
	"os"
	"time"

	"github.com/dfgviz/histflow/internal/analysis"
)

// OutputFormat identifies a report writer.
type OutputFormat int

const (
	FormatConsole OutputFormat = iota
	FormatJSON
)

// Options controls where and how a report is written.
type Options struct {
	Format     OutputFormat
	OutputPath string // empty means stdout
}

// Report bundles a completed traversal's results for writing.
type Report struct {
	RepoPath       string
	TargetFiles    []string
	TargetFunction string
	GeneratedAt    time.Time
	// Revisions is the exported result store, keyed by revision id.
	Revisions map[string]*analysis.Result
	// Order lists revision ids in processing order for stable display.
	Order []string
}

// Writer writes a traversal report.
type Writer interface {
	Write(report *Report, options Options) error
}

// NewWriter returns the writer for a format.
func NewWriter(format OutputFormat) Writer {
	switch format {
	case FormatJSON:
		return &JSONWriter{}
	default:
		return &ConsoleWriter{}
	}
}

func openOutputWriter(outputPath string) (io.Writer, *os.File, error) {
	if outputPath == "" {
		return os.Stdout, nil, nil
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, nil, err
	}
	return file, file, nil
}
