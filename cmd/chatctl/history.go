package main

import (
	"fmt"

	"vibehive/domain"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit  int
		before string
	)
	cmd := &cobra.Command{
		Use:   "history <counterparty>",
		Short: "Print the conversation with a counterparty, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := opts.identity()
			if err != nil {
				return err
			}
			c, err := opts.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := callContext(cmd)
			defer cancel()
			other := domain.ParticipantID(args[0])

			if limit == 0 && before == "" {
				messages, err := c.History(ctx, viewer, other)
				if err != nil {
					return err
				}
				renderMessages(cmd.OutOrStdout(), messages)
				return nil
			}

			page := domain.Page{Limit: limit}
			if before != "" {
				page.Before = &before
			}
			messages, next, err := c.Window(ctx, viewer, other, page)
			if err != nil {
				return err
			}
			renderMessages(cmd.OutOrStdout(), messages)
			if next != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nolder messages: --before %s\n", *next)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "page size, switches to paged history")
	cmd.Flags().StringVar(&before, "before", "", "cursor returned by a previous page")
	return cmd
}
