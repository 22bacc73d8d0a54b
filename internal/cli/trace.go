package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dan-solli/goalgraph/pkg/trace"
)

func traceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded operation traces",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the most recent operation traces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			last, _ := cmd.Flags().GetInt("last")
			g, err := a.open()
			if err != nil {
				return err
			}
			path := g.Config().TracePath
			if path == "" {
				return fmt.Errorf("no trace file configured: pass --trace-file or set trace_path in config.yaml")
			}
			records, err := trace.ReadFile(path, last)
			if err != nil {
				return err
			}
			if ok, err := a.emit(records); ok {
				return err
			}
			for _, r := range records {
				status := color.New(color.FgGreen).Sprint(r.Status)
				if r.Status != "success" {
					status = color.New(color.FgRed).Sprintf("%s (%s)", r.Status, r.ErrorType)
				}
				a.printf("%s  %-16s %6dms  %s\n", stamp(r.Timestamp), r.Operation, r.DurationMs, status)
				for _, s := range r.Spans {
					a.printf("    %-10s %6dms\n", s.Name, s.DurationMs)
				}
			}
			return nil
		},
	}
	show.Flags().Int("last", 20, "number of records to print (0 for all)")

	cmd.AddCommand(show)
	return cmd
}
