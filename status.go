package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newStatusCmd prints the per-table unsynced counts.
func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pending sync state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			status, err := app.Orch.Status(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")

				return enc.Encode(status)
			}

			total := 0

			for _, table := range app.Cfg.Sync.Tables {
				n := status.Unsynced[table]
				total += n
				fmt.Printf("%-20s %d\n", table, n)
			}

			fmt.Printf("%-20s %d\n", "total", total)

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")

	return cmd
}
