package output

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// ConsoleWriter writes a human-readable summary of a traversal to stdout.
type ConsoleWriter struct{}

// Write outputs the report to the console.
func (w *ConsoleWriter) Write(report *Report, options Options) error {
	color.Green("Dataflow History Analysis Results")
	fmt.Printf("Repository: %s\n", report.RepoPath)
	if len(report.TargetFiles) > 0 {
		fmt.Printf("Target files: %s\n", strings.Join(report.TargetFiles, ", "))
	}
	if report.TargetFunction != "" {
		fmt.Printf("Target function: %s\n", report.TargetFunction)
	}
	fmt.Printf("Revisions with results: %d\n\n", len(report.Revisions))

	if len(report.Revisions) == 0 {
		fmt.Println("No dataflow data found in any revision.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRevision\tVariables\tFunctions")

	for i, revision := range report.Order {
		result, ok := report.Revisions[revision]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n",
			i+1,
			shortRevision(revision),
			len(result.Variables),
			functionSummary(result.Functions(), 3),
		)
	}

	return tw.Flush()
}

func shortRevision(revision string) string {
	if len(revision) <= 8 {
		return revision
	}
	return revision[:8]
}

// functionSummary renders up to max discovered function names, with a
// remainder count for the rest.
func functionSummary(functions []string, max int) string {
	if len(functions) == 0 {
		return "-"
	}
	if len(functions) <= max {
		return strings.Join(functions, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(functions[:max], ", "), len(functions)-max)
}
