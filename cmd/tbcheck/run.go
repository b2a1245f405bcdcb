package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tbcheck/internal/core"
	"github.com/JonMunkholm/tbcheck/internal/report"
)

// errChecksFailed makes the process exit non-zero under --strict.
var errChecksFailed = errors.New("checks failed")

type runOptions struct {
	rules  string
	sheet  string
	mode   string
	allow  []string
	out    string
	strict bool
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <data file>",
		Short: "Run rules against a sheet and write all_results.xlsx",
		Long: `Run every rule entry against one sheet of the data file, print a report
and write the failing results to a workbook with one sheet per result.

No workbook is written when no rule returned a table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, ro, args[0])
		},
	}
	cmd.Flags().StringVarP(&ro.rules, "rules", "r", "", "rule file (default: built-in rules)")
	cmd.Flags().StringVarP(&ro.sheet, "sheet", "s", "", "sheet to check (default: first sheet)")
	cmd.Flags().StringVar(&ro.mode, "mode", "", "discovery mode: fixed-name, discover-all or allow-list")
	cmd.Flags().StringSliceVar(&ro.allow, "allow", nil, "rule names to run in allow-list mode")
	cmd.Flags().StringVarP(&ro.out, "out", "o", report.FileName, "workbook output path")
	cmd.Flags().BoolVar(&ro.strict, "strict", false, "exit non-zero when any check fails or errors")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *globalOptions, ro *runOptions, path string) error {
	svc, err := opts.service(cmd.Context())
	if err != nil {
		return err
	}
	res, err := checkFile(cmd.Context(), svc, cmd.OutOrStdout(), runTarget{
		data:  path,
		rules: ro.rules,
		sheet: ro.sheet,
		mode:  ro.mode,
		allow: ro.allow,
		out:   ro.out,
	})
	if err != nil {
		return err
	}
	if ro.strict && (res.Report.Failed > 0 || res.Report.Errors > 0) {
		return errChecksFailed
	}
	return nil
}

// runTarget is one data file to check and where its workbook goes.
type runTarget struct {
	data  string
	rules string
	sheet string
	mode  string
	allow []string
	out   string
}

// checkFile runs one target, prints its report and writes the workbook.
func checkFile(ctx context.Context, svc *core.Service, out io.Writer, target runTarget) (*core.RunResult, error) {
	data, err := os.ReadFile(target.data)
	if err != nil {
		return nil, err
	}
	req := core.RunRequest{
		DataName: filepath.Base(target.data),
		Data:     data,
		Sheet:    target.sheet,
		Mode:     target.mode,
		Allow:    target.allow,
	}
	if target.rules != "" {
		if req.Rules, err = os.ReadFile(target.rules); err != nil {
			return nil, err
		}
		req.RulesName = filepath.Base(target.rules)
	}

	res, err := svc.Run(ctx, req)
	if err != nil {
		return nil, cliError(err)
	}
	printRun(out, res)

	if res.ExportError != nil {
		return res, cliError(res.ExportError)
	}
	if res.Download == nil {
		fmt.Fprintln(out, "\nNo result tables; no workbook written")
		return res, nil
	}

	a, err := svc.Artifact(res.ID)
	if err != nil {
		return res, cliError(err)
	}
	if dir := filepath.Dir(target.out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("write workbook: %w", err)
		}
	}
	if err := os.WriteFile(target.out, a.Data, 0o644); err != nil {
		return res, fmt.Errorf("write workbook: %w", err)
	}
	fmt.Fprintf(out, "\nWrote %s (%d sheet(s): %s)\n", target.out, len(a.Sheets), strings.Join(a.Sheets, ", "))
	return res, nil
}

func printRun(out io.Writer, res *core.RunResult) {
	fmt.Fprintf(out, "%s [%s] %d rows, rules %s (%s): %s\n",
		res.DataFile, res.Sheet, res.Rows, res.RulesOrigin, res.Mode, strings.Join(res.Entries, ", "))

	for _, s := range res.Report.Sections {
		fmt.Fprintf(out, "\n== %s [%s]\n", s.Title, s.Status)
		if s.Message != "" {
			fmt.Fprintln(out, s.Message)
		}
		if len(s.Rows) > 0 {
			writeGrid(out, s.Columns, s.Rows)
			if s.Truncated {
				fmt.Fprintf(out, "... %d more row(s)\n", s.RowCount-len(s.Rows))
			}
		}
	}

	if res.Output != "" {
		fmt.Fprintf(out, "\n-- rule output --\n%s", res.Output)
		if !strings.HasSuffix(res.Output, "\n") {
			fmt.Fprintln(out)
		}
	}

	rep := res.Report
	fmt.Fprintf(out, "\n%d passed, %d failed, %d message(s), %d error(s) in %s\n",
		rep.Passed, rep.Failed, rep.Messages, rep.Errors, res.Duration.Round(time.Millisecond))
}
