package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verbi-app/verbi/internal/api"
)

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <email> <username>",
		Short: "Create an account (password is read from stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			password, err := readSecret(cc, "Password: ")
			if err != nil {
				return err
			}

			msg, err := cc.App().Account.Register(cmd.Context(), args[0], args[1], password)
			if err != nil {
				return err
			}

			cc.Statusf("%s\nCheck your inbox, then run 'verbi confirm-email %s <code>'.\n", msg, args[0])

			return nil
		},
	}
}

func newConfirmEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-email <email> <code>",
		Short: "Confirm a registration with the emailed code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			msg, err := cc.App().Account.ConfirmEmail(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			cc.Statusf("%s\n", msg)

			return nil
		},
	}
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email-or-username>",
		Short: "Sign in (password is read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			password, err := readSecret(cc, "Password: ")
			if err != nil {
				return err
			}

			if err := cc.App().Account.Login(cmd.Context(), args[0], password); err != nil {
				if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrNotFound) {
					return fmt.Errorf("login failed: wrong email, username or password")
				}

				return err
			}

			cc.Logger.Info("login successful")
			cc.Statusf("Login successful.\n")

			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and revoke the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if _, err := cc.App().Account.Logout(cmd.Context()); err != nil {
				return err
			}

			cc.Logger.Info("logout successful")
			cc.Statusf("Logged out.\n")

			return nil
		},
	}
}

func newResetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Email a password reset code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			msg, err := cc.App().Account.ResetPassword(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cc.Statusf("%s\nThen run 'verbi confirm-reset %s <code>'.\n", msg, args[0])

			return nil
		},
	}
}

func newConfirmResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-reset <email> <code>",
		Short: "Set a new password with a reset code (password is read from stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			password, err := readSecret(cc, "New password: ")
			if err != nil {
				return err
			}

			msg, err := cc.App().Account.ConfirmResetPassword(cmd.Context(), args[0], password, args[1])
			if err != nil {
				return err
			}

			cc.Statusf("%s\n", msg)

			return nil
		},
	}
}

func newResendCodeCmd() *cobra.Command {
	var codeType string

	cmd := &cobra.Command{
		Use:   "resend-code <email>",
		Short: "Send a confirmation or reset code again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			msg, err := cc.App().Account.ResendCode(cmd.Context(), args[0], codeType)
			if err != nil {
				return err
			}

			cc.Statusf("%s\n", msg)

			return nil
		},
	}

	cmd.Flags().StringVar(&codeType, "type", api.CodeTypeEmail,
		fmt.Sprintf("code to resend (%s or %s)", api.CodeTypeEmail, api.CodeTypePassword))

	return cmd
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			info, err := cc.App().Account.FetchUserInfo(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching user profile: %w", err)
			}

			if cc.Flags.JSON {
				return printJSON(cc.Out, whoamiOutput{Username: info.Username, Email: info.Email})
			}

			fmt.Fprintf(cc.Out, "User:  %s\nEmail: %s\n", info.Username, info.Email)

			return nil
		},
	}
}

// readPassword reads a line from a terminal without echo. Tests replace it.
var readPassword = term.ReadPassword

// readSecret prompts on stderr and reads one line from stdin. On a terminal
// the input is not echoed; piped input is read as a plain line.
func readSecret(cc *CLIContext, prompt string) (string, error) {
	fmt.Fprint(cc.Err, prompt)

	var line string

	if fd, ok := terminalFd(cc.In); ok {
		b, err := readPassword(fd)
		fmt.Fprintln(cc.Err)

		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}

		line = string(b)
	} else {
		var err error

		line, err = bufio.NewReader(cc.In).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
	}

	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("password must not be empty")
	}

	return secret, nil
}
