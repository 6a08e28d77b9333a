package main

import (
	"fmt"
	"strings"

	"vibehive/domain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send <receiver> <content...>",
		Short: "Send a direct message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sender, err := opts.identity()
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
			message, err := c.Send(ctx, domain.SendIntent{
				RequestID: uuid.NewString(),
				Sender:    sender,
				Receiver:  domain.ParticipantID(args[0]),
				Content:   strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatLine(message.Sender, message))
			return nil
		},
	}
}
