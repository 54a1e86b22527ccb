package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// FilesCmd returns the files command.
func FilesCmd() *cli.Command {
	return &cli.Command{
		Name:      "files",
		Usage:     "List tracked files matching glob patterns",
		ArgsUsage: "[pattern ...]",
		Flags:     commonFlags(),
		Action:    filesAction,
	}
}

func filesAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	reader, err := openReader(c, cfg)
	if err != nil {
		return err
	}

	files, err := reader.ListTrackedFiles(c.Context, c.Args().Slice()...)
	if err != nil {
		return err
	}
	for _, file := range files {
		fmt.Println(file)
	}
	return nil
}
