package main

import (
	"fmt"

	"vibehive/domain"
	"vibehive/domain/event"
	"vibehive/projection"

	"github.com/spf13/cobra"
)

func newListenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "listen <counterparty>",
		Short: "Print the conversation and follow it live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := opts.identity()
			if err != nil {
				return err
			}
			if viewer.IsZero() {
				return fmt.Errorf("listen needs --as to know which conversation to follow")
			}
			c, err := opts.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			timeline := projection.NewTimeline(viewer, domain.ParticipantID(args[0]))
			out := cmd.OutOrStdout()

			// History is fetched once the stream is joined, the timeline drops what both return.
			events := make(chan event.DomainEvent, 64)
			listenErr := make(chan error, 1)
			joined := make(chan struct{})
			go func() {
				listenErr <- c.Listen(ctx, viewer, func() { close(joined) }, func(e event.DomainEvent) {
					select {
					case events <- e:
					case <-ctx.Done():
					}
				})
			}()
			select {
			case <-joined:
			case err := <-listenErr:
				return err
			case <-ctx.Done():
				return nil
			}

			historyCtx, cancel := callContext(cmd)
			history, err := c.History(historyCtx, viewer, timeline.Counterparty)
			cancel()
			if err != nil {
				return err
			}
			timeline.Hydrate(history)
			for _, m := range timeline.Messages() {
				fmt.Fprintln(out, formatLine(viewer, m))
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-listenErr:
					return err
				case e := <-events:
					delivered, ok := e.(event.MessageDelivered)
					if ok && timeline.Apply(delivered.Message) {
						fmt.Fprintln(out, formatLine(viewer, delivered.Message))
					}
				}
			}
		},
	}
}
