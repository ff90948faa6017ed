package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated identity",
		Long:  "Decode the configured bearer token and show who the portal will see.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, identity, err := bootstrap()
			if err != nil {
				return err
			}

			if flagJSONOutput {
				return writeJSON(os.Stdout, identity)
			}

			hospital := identity.Hospital
			if hospital == "" {
				hospital = "(unaffiliated)"
			}
			fmt.Fprintf(os.Stdout, "User:     %s\n", identity.Name)
			fmt.Fprintf(os.Stdout, "ID:       %s\n", identity.UserID)
			fmt.Fprintf(os.Stdout, "Role:     %s\n", identity.Role)
			fmt.Fprintf(os.Stdout, "Hospital: %s\n", hospital)
			return nil
		},
	}
}
