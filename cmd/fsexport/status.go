package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-fsexport/internal/ledger"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	var failedOnly, showOutput bool
	cmd := &cobra.Command{
		Use:   "status <root> <experiment>",
		Short: "Show the latest outcome of every session recorded in the ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			path := ledgerPath(cfg, args[0], args[1])
			ldg, err := ledger.OpenReadOnly(path, ledgerTimeout)
			if errors.Is(err, ledger.ErrNoLedger) {
				fmt.Fprintf(cmd.OutOrStdout(), "no ledger at %s, nothing was exported yet\n", path)

				return nil
			}
			if err != nil {
				return err
			}
			defer ldg.Close()

			sessions, err := ldg.Sessions()
			if err != nil {
				return err
			}

			wrt := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(wrt, "SUBJECT\tSESSION\tSTATUS\tCOMMANDS\tFINISHED\tERROR")
			for _, rec := range sessions {
				if failedOnly && rec.OK {
					continue
				}
				status := "ok"
				if !rec.OK {
					status = "failed"
				}
				fmt.Fprintf(wrt, "%s\t%s\t%s\t%d\t%s\t%s\n",
					rec.Subject, rec.Session, status, rec.Commands,
					rec.FinishedAt.Local().Format("2006-01-02 15:04"), strings.ReplaceAll(rec.Error, "\n", " "))
			}

			err = wrt.Flush()
			if err != nil || !showOutput {
				return err
			}

			for _, rec := range sessions {
				if rec.Command == "" {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s/%s\n$ %s\n", rec.Subject, rec.Session, rec.Command)
				if rec.Output != "" {
					fmt.Fprintln(cmd.OutOrStdout(), rec.Output)
				}
			}

			return nil
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only show failed sessions")
	cmd.Flags().BoolVar(&showOutput, "output", false, "print the command and output of the failed tools")

	return cmd
}
