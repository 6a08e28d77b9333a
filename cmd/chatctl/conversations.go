package main

import (
	"vibehive/domain"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newConversationsCmd(opts *options) *cobra.Command {
	var with []string
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
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
			candidates := lo.Map(with, func(id string, _ int) domain.ParticipantID { return domain.ParticipantID(id) })
			summaries, err := c.Conversations(ctx, viewer, candidates)
			if err != nil {
				return err
			}
			renderConversations(cmd.OutOrStdout(), summaries)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&with, "with", nil, "restrict to these counterparties")
	return cmd
}
