package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rosterops/rostergate/internal/domain/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate an Argon2id hash for an admin API key",
	Long: `Generate an Argon2id hash of an admin API key for use in config.

The output is a PHC-format string which goes directly into the
auth.admin_keys.key_hash field.

Example:
  rostergate hash-key "my-secret-api-key"
  # Output: $argon2id$v=19$m=48128,t=1,p=1$...

Security note: The key will appear in shell history.
Consider clearing history after use or using an environment variable:
  rostergate hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashKey(args[0])
		if err != nil {
			return fmt.Errorf("failed to hash key: %w", err)
		}
		fmt.Fprintln(os.Stdout, hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
