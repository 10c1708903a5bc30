package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bridgepoint-app/bridgepoint/internal/config"
	"github.com/bridgepoint-app/bridgepoint/internal/invite"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

var invitesCmd = &cobra.Command{
	Use:   "invites",
	Short: "Manage program invitations.",
}

var backfillCodesCmd = &cobra.Command{
	Use:   "backfill-codes",
	Short: "Assign invite codes to profiles that are missing one.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		// No mail is sent during a backfill.
		svc := invite.NewService(store.New(pool), nil, invite.Options{BaseURL: cfg.BaseURL})

		summary, err := svc.BackfillCodes(ctx)
		if err != nil {
			return err
		}

		cmd.Printf("updated %d profiles (%d failed)\n", summary.Updated, summary.Failed)
		return nil
	},
}

func init() {
	invitesCmd.AddCommand(backfillCodesCmd)
}
