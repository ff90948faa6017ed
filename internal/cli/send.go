package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Keta432/medichat/internal/api"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <user-id> <message>",
		Short: "Send a message",
		Long:  "Send a one-off message to a portal user without opening the TUI.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			receiverID := strings.TrimSpace(args[0])
			content := strings.TrimSpace(strings.Join(args[1:], " "))
			if receiverID == "" {
				return api.ValidationError("receiver id is required")
			}
			if content == "" {
				return api.ValidationError("message content is empty")
			}

			_, client, identity, err := bootstrap()
			if err != nil {
				return err
			}

			ctx := context.Background()

			// Resolve the receiver so the affiliation restriction is
			// enforced before the portal sees the request.
			if !identity.Affiliated() {
				contacts, err := client.ListEligibleContacts(ctx)
				if err != nil {
					return err
				}
				allowed := false
				for _, contact := range contacts {
					if contact.ID == receiverID && contact.IsAdmin() {
						allowed = true
						break
					}
				}
				if !allowed {
					return api.ValidationError("unaffiliated accounts can only message administrators")
				}
			}

			sent, err := client.SendMessage(ctx, receiverID, content)
			if err != nil {
				return err
			}

			if flagJSONOutput {
				return writeJSON(os.Stdout, sent)
			}
			fmt.Fprintf(os.Stdout, "Sent %s to %s\n", sent.ID, receiverID)
			return nil
		},
	}
}
