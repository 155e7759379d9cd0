package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Force-finish games left playing by a crashed process",
	Long: `Opens the event store without any transport. Every session still in the
Playing state is force-finished, exactly as a transport would do at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeStore, err := openManager(appCfg, nil, nil)
		if err != nil {
			return err
		}
		defer closeStore()
		defer shutdown(m)

		ids := m.Recovered()
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No interrupted games.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintf(cmd.OutOrStdout(), "force finished %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}
