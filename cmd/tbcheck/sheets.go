package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tbcheck/internal/core"
)

func newSheetsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sheets <file>",
		Short: "List the sheets of a data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := inspect(cmd, opts, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range in.Sheets {
				fmt.Fprintf(out, "%s\t%d rows\n", s.Name, s.RowCount)
			}
			for _, name := range in.Missing {
				fmt.Fprintf(out, "warning: expected sheet %q not found\n", name)
			}
			return nil
		},
	}
}

func newPreviewCmd(opts *globalOptions) *cobra.Command {
	var (
		sheet string
		rows  int
	)
	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Show the first rows of a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rows > 0 {
				opts.cfg.Upload.PreviewRows = rows
			}
			in, err := inspect(cmd, opts, args[0])
			if err != nil {
				return err
			}

			p := in.Sheets[0]
			if sheet != "" {
				found := false
				for _, s := range in.Sheets {
					if s.Name == sheet {
						p, found = s, true
						break
					}
				}
				if !found {
					return fmt.Errorf("sheet %q not found; available: %s", sheet, strings.Join(in.SheetNames(), ", "))
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d rows)\n", p.Name, p.RowCount)
			writeGrid(out, p.Columns, p.Rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet to preview (default: first sheet)")
	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "number of rows to show (default: UPLOAD_PREVIEW_ROWS)")
	return cmd
}

func inspect(cmd *cobra.Command, opts *globalOptions, path string) (*core.Inspection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	svc, err := opts.service(cmd.Context())
	if err != nil {
		return nil, err
	}
	in, err := svc.Inspect(cmd.Context(), filepath.Base(path), data)
	if err != nil {
		return nil, cliError(err)
	}
	return in, nil
}

func writeGrid(out io.Writer, columns []string, rows [][]string) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// cliError turns a pipeline error into the user-facing text with its code.
func cliError(err error) error {
	if err == nil || !core.IsUserFacing(err) {
		return err
	}
	return &codedError{text: core.FormatUserError(err), err: err}
}

type codedError struct {
	text string
	err  error
}

func (e *codedError) Error() string { return e.text }
func (e *codedError) Unwrap() error { return e.err }
