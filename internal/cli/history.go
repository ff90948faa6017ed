package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Keta432/medichat/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse the local message archive",
		Long:  "Browse conversations and threads archived by the sync loop, without contacting the portal.",
	}
	cmd.AddCommand(newHistoryConversationsCmd(), newHistoryMessagesCmd())
	return cmd
}

func openHistory() (*store.HistoryStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled (set history.enabled: true)")
	}
	return store.Open(cfg.HistoryPath(), cfg.History.BusyTimeoutMs)
}

func newHistoryConversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List archived conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openHistory()
			if err != nil {
				return err
			}
			defer archive.Close()

			summaries, err := archive.LoadConversations(context.Background())
			if err != nil {
				return err
			}

			if flagJSONOutput {
				return writeJSON(os.Stdout, summaries)
			}

			if len(summaries) == 0 {
				fmt.Fprintln(os.Stdout, "No archived conversations.")
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, summary := range summaries {
				rows = append(rows, []string{
					summary.Participant.ID,
					summary.Participant.Name,
					string(summary.Participant.Role),
					truncate(summary.LastMessage.Content, 48),
					summary.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			return writeTable(os.Stdout, []string{"ID", "NAME", "ROLE", "LAST MESSAGE", "UPDATED"}, rows)
		},
	}
}

func newHistoryMessagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <user-id>",
		Short: "Show an archived thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openHistory()
			if err != nil {
				return err
			}
			defer archive.Close()

			messages, err := archive.LoadMessages(context.Background(), args[0])
			if err != nil {
				return err
			}

			if flagJSONOutput {
				return writeJSON(os.Stdout, messages)
			}

			if len(messages) == 0 {
				fmt.Fprintln(os.Stdout, "No archived messages for this user.")
				return nil
			}

			for _, msg := range messages {
				sender := msg.Sender.Name
				if sender == "" {
					sender = msg.Sender.ID
				}
				fmt.Fprintf(os.Stdout, "[%s] %s: %s\n",
					msg.CreatedAt.Local().Format("2006-01-02 15:04"),
					sender,
					msg.Content,
				)
			}
			return nil
		},
	}
}
