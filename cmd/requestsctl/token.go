package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidar/team-requests-service/internal/config"
	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/service"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}
	cmd.AddCommand(tokenIssueCmd())
	return cmd
}

func tokenIssueCmd() *cobra.Command {
	var (
		userID string
		campus string
		roles  []string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token signed with JWT_SECRET_KEY",
		Long: `Issue a bearer token for local testing.

Examples:
  requestsctl token issue --user m123 --campus C1
  requestsctl token issue --user m1 --campus C1 --role requests_reviewer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			expiry := cfg.JWT.GetExpiration()
			if ttl > 0 {
				expiry = ttl
			}

			token, err := service.NewAuthService(cfg.JWT.Secret, expiry).IssueToken(domain.Identity{
				UserID:     userID,
				CampusCode: campus,
				Roles:      roles,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user matricula")
	cmd.Flags().StringVar(&campus, "campus", "", "campus code")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "roles (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_EXPIRATION_HOURS)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("campus")

	return cmd
}
