package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/japaniel/bsdetect/pkg/db"
)

func newUserCmd(opts *globalOptions) *cobra.Command {
	c := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	c.AddCommand(newUserUpsertCmd(opts))
	return c
}

func newUserUpsertCmd(opts *globalOptions) *cobra.Command {
	var (
		openID, name, email, loginMethod, role string
		issueSession                           bool
	)
	c := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a user by open id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if openID == "" {
				return fmt.Errorf("--open-id is required")
			}
			a, closeApp, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()

			now := time.Now()
			u := db.UserUpsert{OpenID: openID, LastSignedIn: &now}
			flags := cmd.Flags()
			if flags.Changed("name") {
				u.Name = &name
			}
			if flags.Changed("email") {
				u.Email = &email
			}
			if flags.Changed("login-method") {
				u.LoginMethod = &loginMethod
			}
			if flags.Changed("role") {
				r := db.Role(role)
				if r != db.RoleUser && r != db.RoleAdmin {
					return fmt.Errorf("--role must be %q or %q", db.RoleUser, db.RoleAdmin)
				}
				u.Role = &r
			}

			if err := a.store.UpsertUser(cmd.Context(), u, a.cfg.Auth.OwnerOpenID); err != nil {
				return err
			}
			user, err := a.store.UserByOpenID(cmd.Context(), openID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user %d %s role=%s\n", user.ID, user.OpenID, user.Role)

			if issueSession {
				token, err := a.sessions.Issue(openID)
				if err != nil {
					return fmt.Errorf("issue session: %w", err)
				}
				fmt.Fprintf(out, "%s=%s\n", a.sessions.CookieName, token)
			}
			return nil
		},
	}
	f := c.Flags()
	f.StringVar(&openID, "open-id", "", "identity provider subject")
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&email, "email", "", "email address")
	f.StringVar(&loginMethod, "login-method", "", "login method reported by the identity provider")
	f.StringVar(&role, "role", "", "user or admin (default: admin for the owner, else unchanged)")
	f.BoolVar(&issueSession, "issue-session", false, "print a signed session cookie for the user")
	return c
}
