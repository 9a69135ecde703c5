package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/emr-backend/internal/auth"
	"github.com/hackgods/emr-backend/internal/directory"
)

func tokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user must be a UUID: %w", err)
			}

			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			user, err := directory.NewPgDirectory(pool).GetUser(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("look up user %s: %w", id, err)
			}

			if ttl == 0 {
				ttl = cfg.JWTTTL
			}
			token, err := auth.NewIssuer(cfg.JWTSecret, ttl).Issue(user.ID)
			if err != nil {
				return err
			}

			cmd.PrintErrf("token for %s (%s), valid %s\n", user.DisplayName(), user.Role, ttl)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to issue the token for")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to JWT_TTL")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
