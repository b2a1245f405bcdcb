package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newRulesCmd(opts *globalOptions) *cobra.Command {
	var (
		mode     string
		allow    []string
		showDefs bool
	)
	cmd := &cobra.Command{
		Use:   "rules [rules.go]",
		Short: "List the rule entries a rule file provides",
		Long: `Load a rule file the same way a run would and list the entries that would
execute. Without a file the built-in default rule set is described.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if showDefs {
				_, err := out.Write(svc.DefaultRules())
				return err
			}

			var (
				name string
				src  []byte
			)
			if len(args) == 1 {
				if src, err = os.ReadFile(args[0]); err != nil {
					return err
				}
				name = filepath.Base(args[0])
			}

			info, err := svc.ListRules(cmd.Context(), name, src, mode, allow)
			if err != nil {
				return cliError(err)
			}
			fmt.Fprintf(out, "%s (%s)\n", info.Origin, info.Mode)
			for _, e := range info.Entries {
				fmt.Fprintf(out, "  %s\n", e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "discovery mode: fixed-name, discover-all or allow-list")
	cmd.Flags().StringSliceVar(&allow, "allow", nil, "rule names to run in allow-list mode")
	cmd.Flags().BoolVar(&showDefs, "print-default", false, "print the built-in rule source and exit")
	return cmd
}
