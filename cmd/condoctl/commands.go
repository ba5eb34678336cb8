package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"condo/internal/app"
	"condo/internal/config"
	appctx "condo/internal/core/context"
	"condo/internal/core/id"
	"condo/internal/core/types"
	"condo/internal/domain/auth"
	"condo/pkg/logger"
)

func bootstrap(ctx context.Context) (*app.App, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.IsDevelopment(), Service: "condoctl"})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}

// SweepCmd recomputes penalties of overdue charges.
func SweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Recompute penalties of every overdue unpaid charge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			today := types.DateIn(time.Now(), a.Config.Location)
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				today, err = types.ParseDate(raw)
				if err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", raw)
				}
			}

			res, err := a.Sweeper.Run(logger.WithLogger(ctx, log), today)
			if err != nil {
				return fmt.Errorf("sweep %s: %w", today.Format(types.DateLayout), err)
			}
			fmt.Printf("date=%s scanned=%d updated=%d chunks=%d\n",
				res.Date.Format(types.DateLayout), res.Scanned, res.Updated, res.Chunks)
			return nil
		},
	}
	cmd.Flags().String("date", "", "day to compute penalties for (YYYY-MM-DD), defaults to today")
	return cmd
}

// RelayCmd drains the outbox once.
func RelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay-outbox",
		Short: "Deliver pending outbox messages and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx = logger.WithLogger(ctx, log)
			relay := a.Relay(log)

			if requeue, _ := cmd.Flags().GetBool("requeue"); requeue {
				n, err := relay.Requeue(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("requeued=%d\n", n)
			}

			maxBatches, _ := cmd.Flags().GetInt("max-batches")
			var published, retried, parked int
			for i := 0; i < maxBatches; i++ {
				stats, err := relay.ProcessBatch(ctx)
				if err != nil {
					return err
				}
				published += stats.Published
				retried += stats.Retried
				parked += stats.Parked
				if stats.Claimed == 0 {
					break
				}
			}
			fmt.Printf("published=%d retried=%d parked=%d\n", published, retried, parked)
			return nil
		},
	}
	cmd.Flags().Bool("requeue", false, "move parked messages back to pending first")
	cmd.Flags().Int("max-batches", 100, "stop after this many batches")
	return cmd
}

// TokenCmd signs an access token, for bootstrapping operators.
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			userID, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			managerID, _ := cmd.Flags().GetString("manager")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if _, err := id.Parse(userID); err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			switch role {
			case appctx.RoleAdmin, appctx.RoleMiddleAdmin, appctx.RoleResident:
			default:
				return fmt.Errorf("unknown role %q, want one of %s", role,
					strings.Join([]string{appctx.RoleAdmin, appctx.RoleMiddleAdmin, appctx.RoleResident}, ", "))
			}
			if managerID != "" {
				if _, err := id.Parse(managerID); err != nil {
					return fmt.Errorf("invalid --manager: %w", err)
				}
			}

			jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
			jwtCfg.AccessTokenTTL = ttl
			token, expiresAt, err := auth.NewJWTService(jwtCfg).GenerateAccessToken(appctx.UserContext{
				UserID:    userID,
				Role:      role,
				ManagerID: managerID,
			})
			if err != nil {
				return err
			}
			fmt.Println(token)
			fmt.Printf("expires_at=%s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("user", "", "user id (required)")
	cmd.Flags().String("role", appctx.RoleMiddleAdmin, "admin, middle_admin or resident")
	cmd.Flags().String("manager", "", "manager scope, defaults to the user for middle admins")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
