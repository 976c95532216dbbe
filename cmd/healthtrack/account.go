package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/healthtrack/healthtrack/internal/domain/identity"
	"github.com/healthtrack/healthtrack/internal/domain/insights"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			remember, _ := cmd.Flags().GetBool("remember")

			ctx := cmd.Context()
			if email == "" {
				email = a.identity.RememberedEmail(ctx)
			}
			res, err := a.identity.Login(ctx, email, password, remember)
			if err != nil {
				return err
			}
			greeting := insights.Greeting(insights.GreetingFor(a.cfg.ScorePolicy), a.now())
			fmt.Fprintf(a.out, "%s, %s! Logged in as %s.\n", greeting, res.User.DisplayName, res.User.Role)
			fmt.Fprintf(a.out, "Next: %s\n", res.Next)
			return nil
		}),
	}
	cmd.Flags().String("email", "", "Account email (defaults to the remembered email)")
	cmd.Flags().String("password", "", "Account password")
	cmd.Flags().Bool("remember", false, "Remember the email for the next login")
	return cmd
}

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			var r identity.Registration
			r.Name, _ = cmd.Flags().GetString("name")
			r.Age, _ = cmd.Flags().GetInt("age")
			r.Gender, _ = cmd.Flags().GetString("gender")
			r.Contact, _ = cmd.Flags().GetString("contact")
			r.Email, _ = cmd.Flags().GetString("email")
			r.Password, _ = cmd.Flags().GetString("password")
			r.ConfirmPassword, _ = cmd.Flags().GetString("confirm")
			r.Role, _ = cmd.Flags().GetString("role")
			if r.ConfirmPassword == "" {
				r.ConfirmPassword = r.Password
			}

			res, err := a.identity.Register(cmd.Context(), r)
			if err != nil {
				return err
			}
			strength := identity.PasswordStrength(r.Password)
			fmt.Fprintf(a.out, "Account created (password strength: %s).\n", identity.StrengthLabel(strength))
			if res.AutoLoggedIn {
				fmt.Fprintf(a.out, "Logged in as %s. Next: %s\n", res.User.DisplayName, res.Next)
			} else {
				fmt.Fprintln(a.out, "Please log in with `healthtrack login`.")
			}
			return nil
		}),
	}
	cmd.Flags().String("name", "", "Full name")
	cmd.Flags().Int("age", 0, "Age in years")
	cmd.Flags().String("gender", "", "Gender")
	cmd.Flags().String("contact", "", "Phone number")
	cmd.Flags().String("email", "", "Email")
	cmd.Flags().String("password", "", "Password")
	cmd.Flags().String("confirm", "", "Password confirmation (defaults to --password)")
	cmd.Flags().String("role", "patient", "Account role: patient or doctor")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if _, err := a.identity.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		}),
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			u, err := a.user(ctx)
			if err != nil {
				return err
			}
			greeting := insights.Greeting(insights.GreetingFor(a.cfg.ScorePolicy), a.now())
			fmt.Fprintf(a.out, "%s, %s [%s]\n", greeting, u.DisplayName, insights.Initials(u.DisplayName))
			fmt.Fprintf(a.out, "ID:    %s\n", u.ID)
			fmt.Fprintf(a.out, "Email: %s\n", u.Email)
			fmt.Fprintf(a.out, "Role:  %s\n", strings.ToLower(string(u.Role)))
			if exp, ok := auth.ExpiresAt(a.gw.Token(ctx)); ok {
				fmt.Fprintf(a.out, "Token expires: %s\n", exp.Local().Format("2006-01-02 15:04"))
			}
			return nil
		}),
	}
}
