package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tbcheck/internal/profile"
)

var errBatchFailed = errors.New("one or more runs failed")

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "batch <profile.yaml>",
		Short: "Run every check listed in a YAML profile",
		Long: `Run each entry of a batch profile in order. A run that cannot start (a
missing file, a rule file that does not load) is reported and the batch
moves on to the next run.

Example profile:

  version: "1"
  defaults:
    rules: rules/tb_rules.go
    mode: discover-all
  runs:
    - data: data/q3.xlsx
      sheet: TB
    - name: q4
      data: data/q4.csv
      fail_on: failures`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.Load(args[0])
			if err != nil {
				return err
			}
			svc, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}

			selected := make(map[string]bool, len(only))
			for _, name := range only {
				selected[name] = true
			}

			out := cmd.OutOrStdout()
			type outcome struct {
				name   string
				status string
				failed bool
			}
			var outcomes []outcome

			for _, r := range p.Runs {
				if len(selected) > 0 && !selected[r.Name] {
					continue
				}
				fmt.Fprintf(out, "\n### %s\n", r.Name)

				res, err := checkFile(cmd.Context(), svc, out, runTarget{
					data:  p.Resolve(r.Data),
					rules: p.Resolve(r.Rules),
					sheet: r.Sheet,
					mode:  r.Mode,
					allow: r.Allow,
					out:   p.Resolve(r.Out),
				})
				switch {
				case err != nil:
					fmt.Fprintf(out, "error: %v\n", err)
					outcomes = append(outcomes, outcome{r.Name, "error", true})
				default:
					failed := r.FailOn.Failed(res.Report.Failed, res.Report.Errors)
					status := fmt.Sprintf("%d passed, %d failed, %d error(s)",
						res.Report.Passed, res.Report.Failed, res.Report.Errors)
					outcomes = append(outcomes, outcome{r.Name, status, failed})
				}
			}

			if len(outcomes) == 0 {
				return fmt.Errorf("no runs matched %v", only)
			}

			fmt.Fprintln(out, "\n### summary")
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			anyFailed := false
			for _, o := range outcomes {
				mark := "ok"
				if o.failed {
					mark = "FAIL"
					anyFailed = true
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", mark, o.name, o.status)
			}
			tw.Flush()

			if anyFailed {
				return errBatchFailed
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "run only the named entries")
	return cmd
}
