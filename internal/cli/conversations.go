package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Keta432/medichat/internal/auth"
	"github.com/Keta432/medichat/internal/models"
)

func newConversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List conversations",
		Long:  "List your portal conversations, most recently active first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, identity, err := bootstrap()
			if err != nil {
				return err
			}

			summaries, err := client.ListConversations(context.Background())
			if err != nil {
				return err
			}
			summaries = visibleConversations(identity, summaries)

			if flagJSONOutput {
				return writeJSON(os.Stdout, summaries)
			}

			if len(summaries) == 0 {
				fmt.Fprintln(os.Stdout, "No conversations.")
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, summary := range summaries {
				unread := ""
				if summary.UnreadCount > 0 {
					unread = fmt.Sprintf("%d", summary.UnreadCount)
				}
				rows = append(rows, []string{
					summary.Participant.ID,
					summary.Participant.Name,
					string(summary.Participant.Role),
					unread,
					truncate(summary.LastMessage.Content, 48),
					summary.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			return writeTable(os.Stdout, []string{"ID", "NAME", "ROLE", "UNREAD", "LAST MESSAGE", "UPDATED"}, rows)
		},
	}
}

// visibleConversations applies the affiliation rule to the listing: an
// unaffiliated account only sees conversations with administrators.
func visibleConversations(identity auth.Identity, summaries []models.ConversationSummary) []models.ConversationSummary {
	if identity.Affiliated() {
		return summaries
	}
	visible := make([]models.ConversationSummary, 0, len(summaries))
	for _, summary := range summaries {
		if summary.Participant.IsAdmin() {
			visible = append(visible, summary)
		}
	}
	return visible
}

func writeJSON(out *os.File, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
