package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/labbo/internal/model"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Sign in and remember the session",
		GroupID: "account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			if err := resultErr(a.sess.Login(cmd.Context(), email, password)); err != nil {
				return err
			}
			user := a.sess.User()
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", user.FullName, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		Short:   "End the session and forget the stored token",
		GroupID: "account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.sess.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		Short:   "Show the signed-in user",
		GroupID: "account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Name:\t%s\n", user.FullName)
			fmt.Fprintf(w, "Email:\t%s\n", user.Email)
			fmt.Fprintf(w, "Role:\t%s\n", user.Role)
			if user.Department != "" {
				fmt.Fprintf(w, "Department:\t%s\n", user.Department)
			}
			return w.Flush()
		},
	}
}

func (a *app) registerCmd() *cobra.Command {
	var name, email, password, confirm string
	cmd := &cobra.Command{
		Use:     "register",
		Short:   "Create a student account",
		GroupID: "account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if confirm == "" {
				confirm = password
			}
			res := a.sess.Register(cmd.Context(), name, email, password, confirm)
			if err := resultErr(res); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			msg := res.Message
			if msg == "" {
				msg = "Account created"
			}
			fmt.Fprintln(out, msg)
			if res.RequiresVerification {
				fmt.Fprintln(out, "Check your inbox, then run `labboctl verify-email <token>`.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "repeat the password (defaults to --password)")
	return cmd
}

func (a *app) forgotPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "forgot-password <email>",
		Short:   "Email a password reset link",
		GroupID: "account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.sess.RequestPasswordReset(cmd.Context(), args[0])
			if err := resultErr(res); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

func (a *app) resetPasswordCmd() *cobra.Command {
	var token, password, confirm string
	cmd := &cobra.Command{
		Use:     "reset-password",
		Short:   "Set a new password with a reset token",
		GroupID: "account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				return errors.New("--token is required")
			}
			if confirm == "" {
				confirm = password
			}
			res := a.sess.ResetPassword(cmd.Context(), token, password, confirm)
			if err := resultErr(res); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "reset token from the email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "new password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "repeat the new password (defaults to --password)")
	return cmd
}

func (a *app) verifyEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "verify-email <token>",
		Short:   "Confirm an email address",
		GroupID: "account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.sess.VerifyEmail(cmd.Context(), args[0])
			if err := resultErr(res); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

func (a *app) demoAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "demo-accounts",
		Short:   "List the demo logins offered by the server",
		GroupID: "account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := a.client.DemoAccounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch demo accounts: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tPASSWORD\tROLE\tDESCRIPTION")
			for _, acct := range accounts {
				desc := acct.Description
				if desc == "" {
					desc = model.RoleDescription(acct.Role)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", acct.Email, acct.Password, acct.Role, desc)
			}
			return w.Flush()
		},
	}
}
