package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrollments and their states",
	Long: `List all enrollment records. An optional --filter matches display
names ignoring case and diacritics, so "jan novak" finds "Jan Novák".`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("filter", "", "Filter by display name")
}

func runList(cmd *cobra.Command, args []string) error {
	svcs, err := buildServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.Close()

	entries, err := svcs.service.Roster(cmd.Context(), mustGetString(cmd, "filter"))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No enrollments found")
		return nil
	}

	for _, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Printf("%-24s %-12s %-12s %s\n", e.IdentityID, e.State, e.Model, name)
	}
	fmt.Printf("\n%d enrollment(s)\n", len(entries))
	return nil
}
