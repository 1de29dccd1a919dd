package main

import (
	"fmt"
	"time"

	"github.com/lk2023060901/signage-backend/internal/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		userID   int64
		tenantID int64
		role     string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed access token for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !auth.ValidRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			manager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, ttl)
			token, err := manager.GenerateToken(userID, tenantID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 1, "User id")
	cmd.Flags().Int64Var(&tenantID, "tenant", 0, "Tenant id")
	cmd.Flags().StringVar(&role, "role", auth.RoleSuperAdmin, "Role: super_admin, tenant_admin, operator, device")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime, defaults to auth.token_ttl")
	return cmd
}
