package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pmo-dashboard/internal/auth"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if email == "" {
				if email, err = a.readLine("Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.readLine("Senha: "); err != nil {
					return err
				}
			}
			if email == "" || password == "" {
				return errors.New("email e senha são obrigatórios")
			}

			c := a.client()
			token, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Sessão salva em %s\n", a.sessionFile)
			if claims, err := auth.Inspect(token, a.now()); err == nil && claims.ExpiresAt != nil {
				fmt.Fprintf(a.out, "Expira em %s\n", claims.ExpiresAt.Time.Local().Format(time.DateTime))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Sessão encerrada.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authed()
			if err != nil {
				return err
			}
			me, err := c.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(me)
			}
			fmt.Fprintf(a.out, "%s <%s> (%s)\n", me.GetDisplayName(), me.Email, me.Role)
			return nil
		},
	}
}

func newTokenInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tokeninfo",
		Short: "Decode the saved token without contacting the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.client().Tokens().Load()
			if err != nil {
				return err
			}
			now := a.now()
			claims, err := auth.Inspect(token, now)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				fmt.Fprintf(a.out, "Usuário: %s\nExpirado em %s\n", claims.Subject, claims.ExpiresAt.Time.Local().Format(time.DateTime))
				return nil
			case err != nil:
				return fmt.Errorf("token inválido: %w", err)
			}
			fmt.Fprintf(a.out, "Usuário: %s\n", claims.Subject)
			if claims.ExpiresAt != nil {
				fmt.Fprintf(a.out, "Expira em %s (%s)\n", claims.ExpiresAt.Time.Local().Format(time.DateTime),
					claims.ExpiresIn(now).Round(time.Second))
			}
			return nil
		},
	}
}

func newTokenGenCmd(a *app) *cobra.Command {
	var (
		userID int64
		secret string
		expiry time.Duration
	)
	cmd := &cobra.Command{
		Use:   "tokengen",
		Short: "Mint a development token for a backend sharing JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = a.cfg.JWTSecret
			}
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			token, err := auth.NewJWTManager(secret, expiry).GenerateToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 1, "User ID placed in the subject claim")
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to JWT_SECRET)")
	cmd.Flags().DurationVar(&expiry, "expiry", a.cfg.JWTExpiry, "Token lifetime")
	return cmd
}
