package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/aidar/team-requests-service/internal/config"
	"github.com/aidar/team-requests-service/internal/repository/postgres"
)

func campusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campus",
		Short: "Manage campuses",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [code]",
		Short: "Register a campus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCampusRepo(cmd.Context(), func(repo *postgres.CampusRepository) error {
				if err := repo.Create(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to add campus: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "campus %s added\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List campuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCampusRepo(cmd.Context(), func(repo *postgres.CampusRepository) error {
				campuses, err := repo.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list campuses: %w", err)
				}
				if len(campuses) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "(no campuses)")
					return nil
				}
				for _, c := range campuses {
					fmt.Fprintln(cmd.OutOrStdout(), c.Code)
				}
				return nil
			})
		},
	})

	return cmd
}

func withCampusRepo(ctx context.Context, fn func(repo *postgres.CampusRepository) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	return fn(postgres.NewCampusRepository(pool))
}
