package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"cookmode/pkg/i18n"
	"cookmode/pkg/system"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inhibitorsCmd)
}

var inhibitorsCmd = &cobra.Command{
	Use:   "inhibitors",
	Short: "List processes currently preventing sleep or screen blanking",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		list, err := system.ListInhibitors()
		if err != nil {
			return err
		}
		return printInhibitors(cmd.OutOrStdout(), list)
	},
}

func printInhibitors(w io.Writer, list []system.Inhibitor) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, i18n.T("inhibitors.empty"))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tNAME\tWHAT\tMODE\tWHY")
	for _, inh := range list {
		name := inh.Name
		if name == "" {
			name = inh.Who
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", inh.PID, name, inh.What, inh.Mode, inh.Why)
	}
	return tw.Flush()
}
