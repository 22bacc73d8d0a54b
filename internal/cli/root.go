// Package cli implements the goalgraph command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dan-solli/goalgraph/pkg/goalgraph"
	"github.com/dan-solli/goalgraph/pkg/metrics"
	"github.com/dan-solli/goalgraph/pkg/store"
	"github.com/dan-solli/goalgraph/pkg/versioning"
)

// app holds the global flags and the store opened for one invocation.
type app struct {
	root        string
	backend     string
	dbPath      string
	collision   string
	verbose     bool
	logJSON     bool
	jsonOut     bool
	traceFile   string
	metricsFile string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	graph   *goalgraph.Goalgraph
	metrics *metrics.MetricsCollector
}

// Run executes the command line in args and returns the process exit code.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if cerr := a.close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", color.New(color.FgRed).Sprint("error:"), err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goalgraph",
		Short: "Track goals as current-state to desired-state transformations",
		Long: `goalgraph keeps a versioned graph of goals: each goal records where
things stand, where they should end up, how to verify it, and its history of
snapshots and branches. Records live in a store directory as YAML documents
(or in SQLite) with a derived index for fast queries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.root, "root", "", "store directory (default $GOALGRAPH_ROOT or ~/.goalgraph)")
	f.StringVar(&a.backend, "backend", "", "record backend: file or sqlite")
	f.StringVar(&a.dbPath, "db", "", "SQLite database path (default <root>/goalgraph.db)")
	f.StringVar(&a.collision, "branch-collision", "", "branch name collision policy: fail, suffix or overwrite")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")
	f.BoolVar(&a.logJSON, "log-json", false, "log as JSON")
	f.BoolVar(&a.jsonOut, "json", false, "print results as JSON")
	f.StringVar(&a.traceFile, "trace-file", "", "append operation traces to this JSONL file")
	f.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(goalCmd(a))
	cmd.AddCommand(snapshotCmd(a))
	cmd.AddCommand(branchCmd(a))
	cmd.AddCommand(projectCmd(a))
	cmd.AddCommand(sessionCmd(a))
	cmd.AddCommand(indexCmd(a))
	cmd.AddCommand(queryCmd(a))
	cmd.AddCommand(traceCmd(a))

	return cmd
}

// open builds the store configuration from flags, <root>/config.yaml and
// defaults, in that order of precedence, and opens it once.
func (a *app) open() (*goalgraph.Goalgraph, error) {
	if a.graph != nil {
		return a.graph, nil
	}

	root := a.root
	if root == "" {
		root = goalgraph.DefaultRoot()
	}
	cfg := goalgraph.Config{
		Root:            root,
		Backend:         store.Backend(a.backend),
		DBPath:          a.dbPath,
		BranchCollision: versioning.CollisionPolicy(a.collision),
		TracePath:       a.traceFile,
		Logger:          a.logger(),
	}
	fc, err := goalgraph.LoadRootConfig(root)
	if err != nil {
		return nil, err
	}
	fc.Apply(&cfg, root)

	if a.metricsFile != "" {
		a.metrics = metrics.NewCollector()
		cfg.Metrics = a.metrics
	}

	g, err := goalgraph.New(cfg)
	if err != nil {
		return nil, err
	}
	a.graph = g
	return g, nil
}

func (a *app) close() error {
	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.WriteToTextfile(a.metricsFile))
	}
	if a.graph != nil {
		errs = append(errs, a.graph.Close())
		a.graph = nil
	}
	return errors.Join(errs...)
}

func (a *app) logger() *slog.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if a.logJSON {
		return slog.New(slog.NewJSONHandler(a.stderr, opts))
	}
	return slog.New(slog.NewTextHandler(a.stderr, opts))
}

// withGraph opens the store and runs fn with it.
func (a *app) withGraph(fn func(ctx context.Context, g *goalgraph.Goalgraph) error) error {
	g, err := a.open()
	if err != nil {
		return err
	}
	return fn(context.Background(), g)
}
