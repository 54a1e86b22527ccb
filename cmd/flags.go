package cmd

import (
	"fmt"

	"github.com/dfgviz/histflow/internal/cmake"
	"github.com/urfave/cli/v2"
)

// FlagsCmd returns the flags command.
func FlagsCmd() *cli.Command {
	return &cli.Command{
		Name:      "flags",
		Usage:     "Print compile flags derived from a CMakeLists.txt for a source file",
		ArgsUsage: "<CMakeLists.txt> <source-file>",
		Action:    flagsAction,
	}
}

func flagsAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected a CMakeLists.txt path and a source file")
	}

	project, err := cmake.Parse(c.Args().Get(0))
	if err != nil {
		return err
	}
	for _, arg := range project.CompileArgs(c.Args().Get(1)) {
		fmt.Println(arg)
	}
	return nil
}
