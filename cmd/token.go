package cmd

import (
	"fmt"
	"time"

	"github.com/emrgen/impact/internal/auth"
	"github.com/emrgen/impact/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "token commands",
}

func init() {
	tokenCmd.AddCommand(issueTokenCmd())
}

func issueTokenCmd() *cobra.Command {
	var userID string
	var ttl time.Duration
	var save bool

	var required = []string{"user"}

	command := &cobra.Command{
		Use:     "issue",
		Short:   "issue a bearer token signed with auth.secret",
		Example: "impact token issue -u <user-id> --ttl 24h --save",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			cfg := config.LoadConfig()
			if cfg.Auth.Secret == "" {
				color.Red("auth.secret is not configured")
				return
			}

			token, err := auth.IssueToken(cfg.Auth.Secret, cfg.Auth.Issuer, userID, ttl)
			if err != nil {
				color.Red("error issuing token: %v", err)
				return
			}

			if save {
				ctx := readContext()
				ctx.Token = token
				writeContext(ctx)
			}
			fmt.Println(token)
		},
	}

	command.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	command.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	command.Flags().BoolVar(&save, "save", false, "store the token in the current context")

	return command
}
