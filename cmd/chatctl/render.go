package main

import (
	"fmt"
	"io"
	"strconv"

	"vibehive/domain"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func renderMessages(w io.Writer, messages []domain.Message) {
	table := newTable(w, []string{"At", "Sender", "Receiver", "Content"})
	for _, m := range messages {
		table.Append([]string{m.CreatedAt.Local().Format(timeLayout), m.Sender.String(), m.Receiver.String(), m.Content})
	}
	table.Render()
}

func renderConversations(w io.Writer, summaries []domain.ConversationSummary) {
	table := newTable(w, []string{"Counterparty", "Messages", "Last At", "Last Message"})
	for _, s := range summaries {
		table.Append([]string{
			s.Counterparty.String(),
			strconv.Itoa(s.Count),
			s.Last.CreatedAt.Local().Format(timeLayout),
			s.Last.Content,
		})
	}
	table.Render()
}

// formatLine renders one message of a live conversation, own messages in green.
func formatLine(viewer domain.ParticipantID, m domain.Message) string {
	style := color.New(color.FgCyan)
	if m.Sender == viewer {
		style = color.New(color.FgGreen)
	}
	header := style.Render(fmt.Sprintf("[%s] %s", m.CreatedAt.Local().Format("15:04:05"), m.Sender))
	return header + " " + m.Content
}
