package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dfgviz/histflow/internal/analysis"
	"github.com/dfgviz/histflow/internal/cmake"
	"github.com/dfgviz/histflow/internal/git"
	"github.com/dfgviz/histflow/internal/output"
	"github.com/dfgviz/histflow/internal/traverse"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

// RunCmd returns the run command.
func RunCmd() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:  "analyzer",
			Usage: "External analyzer command (overrides config)",
		},
		&cli.StringSliceFlag{
			Name:  "analyzer-arg",
			Usage: "Base argument for the analyzer (can be specified multiple times)",
		},
		&cli.StringFlag{
			Name:  "function",
			Usage: "Restrict analysis to a single function",
		},
		&cli.StringFlag{
			Name:  "pattern",
			Usage: "Auto-discover target files from tracked files matching this glob",
		},
		&cli.StringFlag{
			Name:  "cmake",
			Usage: "Path to CMakeLists.txt for file discovery and compile flags",
		},
		&cli.BoolFlag{
			Name:  "keep-empty",
			Usage: "Store revisions whose analysis found nothing",
		},
		&cli.IntFlag{
			Name:  "revision-timeout",
			Usage: "Per-revision timeout in seconds (0 disables)",
			Value: -1,
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format (console, json)",
			Value:   "console",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output file path (default: stdout)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress progress output",
		},
	)

	return &cli.Command{
		Name:      "run",
		Usage:     "Analyze target files across every revision in history",
		ArgsUsage: "[file ...]",
		Flags:     flags,
		Action:    runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if cmd := c.String("analyzer"); cmd != "" {
		cfg.Analyzer.Command = cmd
	}
	if args := c.StringSlice("analyzer-arg"); len(args) > 0 {
		cfg.Analyzer.Args = args
	}
	if c.Bool("keep-empty") {
		cfg.Traversal.KeepEmpty = true
	}
	if secs := c.Int("revision-timeout"); secs >= 0 {
		cfg.Traversal.RevisionTimeoutSeconds = secs
	}
	if cfg.Analyzer.Command == "" {
		return fmt.Errorf("no analyzer configured: set analyzer.command in the config file or pass --analyzer")
	}

	reader, err := openReader(c, cfg)
	if err != nil {
		return err
	}

	files, extraArgs, err := resolveTargets(c, reader)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no target files: pass file arguments or use --pattern / --cmake")
	}

	analyzer := &analysis.Exec{
		Command: cfg.Analyzer.Command,
		Args:    cfg.Analyzer.Args,
		Timeout: cfg.Analyzer.Timeout(),
	}
	traverser := traverse.New(reader, analyzer, traverse.Options{
		KeepEmpty:       cfg.Traversal.KeepEmpty,
		RevisionTimeout: cfg.Traversal.RevisionTimeout(),
	})

	ctx, stopSignals := signal.NotifyContext(c.Context, os.Interrupt)
	defer stopSignals()

	// The traversal runs on one background worker; this context drains the
	// bounded progress channel and never blocks the worker.
	emit, events, stop := traverse.NewEventChannel(cfg.Traversal.ProgressBuffer)

	type outcome struct {
		store *analysis.Store
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		store, err := traverser.Run(ctx, traverse.RunOptions{
			Files:          files,
			TargetFunction: c.String("function"),
			ExtraArgs:      extraArgs,
			Progress:       emit,
		})
		stop()
		done <- outcome{store: store, err: err}
	}()

	quiet := c.Bool("quiet")
	for ev := range events {
		if quiet {
			continue
		}
		if ev.Warning {
			color.Yellow("%s", ev.Message)
		} else {
			fmt.Fprintln(os.Stderr, ev.Message)
		}
	}

	result := <-done
	if result.err != nil {
		if result.store != nil && result.store.Len() > 0 {
			color.Yellow("run interrupted, writing %d partial result(s)", result.store.Len())
		} else {
			return result.err
		}
	}

	report := &output.Report{
		RepoPath:       reader.Root(),
		TargetFiles:    files,
		TargetFunction: c.String("function"),
		GeneratedAt:    time.Now(),
		Revisions:      result.store.Export(),
		Order:          result.store.Revisions(),
	}

	format := getOutputFormat(c.String("format"))
	writer := output.NewWriter(format)
	return writer.Write(report, output.Options{
		Format:     format,
		OutputPath: c.String("output"),
	})
}

// resolveTargets determines the target file set from positional arguments,
// a CMake descriptor, or tracked-file discovery, plus extra analyzer
// arguments when a descriptor is in play.
func resolveTargets(c *cli.Context, reader *git.Reader) (files []string, extraArgs []string, err error) {
	if c.NArg() > 0 {
		files = c.Args().Slice()
	}

	if cmakePath := c.String("cmake"); cmakePath != "" {
		project, perr := cmake.Parse(cmakePath)
		if perr != nil {
			return nil, nil, perr
		}
		if len(files) == 0 {
			files = append(project.SourceFiles(), project.HeaderFiles()...)
		}
		if len(files) > 0 {
			extraArgs = project.CompileArgs(files[0])
		}
		return files, extraArgs, nil
	}

	if pattern := c.String("pattern"); pattern != "" && len(files) == 0 {
		files, err = reader.ListTrackedFiles(c.Context, pattern)
		if err != nil {
			return nil, nil, err
		}
	}

	// Normalize away leading "./" so paths match git's repository-relative form.
	for i, f := range files {
		if !filepath.IsAbs(f) {
			files[i] = filepath.ToSlash(filepath.Clean(f))
		}
	}
	return files, extraArgs, nil
}
