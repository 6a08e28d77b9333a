package main

import (
	"vibehive/infrastructure/storage"

	"github.com/mama165/sdk-go/database"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var (
		path   string
		prefix string
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump a badger message store without a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := newTable(cmd.OutOrStdout(), []string{"Key", "Type", "Detail"})
			err := storage.DumpBadger(path, prefix, func(key string, row database.InspectRow) {
				table.Append([]string{key, row.Type, row.Detail})
			})
			if err != nil {
				return err
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "db", database.DefaultPath, "path to the badger directory")
	cmd.Flags().StringVar(&prefix, "prefix", "msg:", "key prefix to scan")
	return cmd
}
