package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Keta432/medichat/internal/models"
)

func newContactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List users you can message",
		Long:  "List the portal users this account may start a conversation with.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, identity, err := bootstrap()
			if err != nil {
				return err
			}

			contacts, err := client.ListEligibleContacts(context.Background())
			if err != nil {
				return err
			}

			// Unaffiliated accounts only reach administrators.
			if !identity.Affiliated() {
				admins := make([]models.Participant, 0, len(contacts))
				for _, contact := range contacts {
					if contact.IsAdmin() {
						admins = append(admins, contact)
					}
				}
				contacts = admins
			}

			if flagJSONOutput {
				return writeJSON(os.Stdout, contacts)
			}

			if len(contacts) == 0 {
				fmt.Fprintln(os.Stdout, "No contacts available.")
				return nil
			}

			rows := make([][]string, 0, len(contacts))
			for _, contact := range contacts {
				rows = append(rows, []string{
					contact.ID,
					contact.Name,
					string(contact.Role),
					contact.Hospital,
					contact.Email,
				})
			}
			return writeTable(os.Stdout, []string{"ID", "NAME", "ROLE", "HOSPITAL", "EMAIL"}, rows)
		},
	}
}
