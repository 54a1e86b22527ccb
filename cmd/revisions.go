package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
)

// RevisionsCmd returns the revisions command.
func RevisionsCmd() *cli.Command {
	return &cli.Command{
		Name:   "revisions",
		Usage:  "List every revision reachable from every ref",
		Flags:  commonFlags(),
		Action: revisionsAction,
	}
}

func revisionsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	reader, err := openReader(c, cfg)
	if err != nil {
		return err
	}

	revisions, err := reader.ListRevisions(c.Context)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, rev := range revisions {
		fmt.Fprintf(tw, "%s\t%s\n", rev.Short(), rev.Subject)
	}
	return tw.Flush()
}
