package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pmo-dashboard/internal/accounts"
	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/ui"
)

func newRegisterCmd(a *app) *cobra.Command {
	var reg accounts.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a Membro account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if reg.Password == "" {
				if reg.Password, err = a.readLine("Senha: "); err != nil {
					return err
				}
			}
			u, err := accounts.New(a.client(), ui.NewConsole(a.out), accounts.WithLogger(a.logger)).
				Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(u)
			}
			fmt.Fprintln(a.out, "Entre com 'pmctl login'.")
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Account password (prompted when empty)")
	return cmd
}

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the authenticated user's profile",
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
			form := accounts.ProfileFrom(me)
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Nome:\t%s\n", form.FullName)
			fmt.Fprintf(tw, "Email:\t%s\n", me.Email)
			fmt.Fprintf(tw, "Papel:\t%s\n", me.Role)
			fmt.Fprintf(tw, "Cargo:\t%s\n", orDash(form.Position))
			fmt.Fprintf(tw, "Telefone:\t%s\n", orDash(form.Phone))
			return tw.Flush()
		},
	}
	cmd.AddCommand(newProfileUpdateCmd(a))
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newProfileUpdateCmd(a *app) *cobra.Command {
	var flags accounts.ProfileEdit
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change name, position or phone; omitted flags keep their value",
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
			edit := accounts.ProfileFrom(me)
			if cmd.Flags().Changed("name") {
				edit.FullName = flags.FullName
			}
			if cmd.Flags().Changed("position") {
				edit.Position = flags.Position
			}
			if cmd.Flags().Changed("phone") {
				edit.Phone = flags.Phone
			}
			u, err := accounts.New(c, ui.NewConsole(a.out), accounts.WithLogger(a.logger)).UpdateProfile(cmd.Context(), edit)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(u)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&flags.Position, "position", "", "Position (empty clears it)")
	cmd.Flags().StringVar(&flags.Phone, "phone", "", "Phone (empty clears it)")
	return cmd
}

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "User administration (Admin only)",
	}
	cmd.AddCommand(newAdminUsersCmd(a), newAdminRoleCmd(a))
	return cmd
}

func newAdminUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users and their roles",
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
			if !auth.CanEditRoles(me) {
				return fmt.Errorf("%s não tem acesso à administração de usuários", me.GetDisplayName())
			}
			users, err := c.Users(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(users)
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNOME\tEMAIL\tPAPEL\tATIVO")
			for _, u := range users {
				active := "não"
				if u.IsActive {
					active = "sim"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.GetDisplayName(), u.Email, u.Role, active)
			}
			return tw.Flush()
		},
	}
}

func newAdminRoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "role <user-id> <Admin|Gerente|Membro>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseIDArg(args[0], "user id")
			if err != nil {
				return err
			}
			c, err := a.authed()
			if err != nil {
				return err
			}
			me, err := c.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			u, err := accounts.New(c, ui.NewConsole(a.out), accounts.WithLogger(a.logger)).
				ChangeRole(cmd.Context(), me, userID, args[1])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(u)
			}
			return nil
		},
	}
}
