package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/verbi-app/verbi/internal/tokenfile"
)

// Token state constants for status reporting.
const (
	tokenStateMissing = "missing"
	tokenStateExpired = "expired"
	tokenStateValid   = "valid"
	tokenStateUnknown = "unknown"
)

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	SignedIn    bool       `json:"signed_in"`
	Username    string     `json:"username,omitempty"`
	Email       string     `json:"email,omitempty"`
	TokenState  string     `json:"token_state"`
	TokenExpiry *time.Time `json:"token_expiry,omitempty"`
	TokenFile   string     `json:"token_file"`
	ConfigFile  string     `json:"config_file"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved session without contacting the server",
		Long: `Display whether a session is saved, the cached user, and when the access
token expires. Reads only the local credential file. An expired access
token is refreshed automatically by the next command that needs it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			tf, err := tokenfile.NewStore(cc.Cfg.Session.TokenFile, cc.Logger).Snapshot()
			if err != nil {
				return err
			}

			out := buildStatus(tf, time.Now())
			out.TokenFile = cc.Cfg.Session.TokenFile
			out.ConfigFile = cc.CfgPath

			if cc.Flags.JSON {
				return printJSON(cc.Out, out)
			}

			printStatusText(cc, out)

			return nil
		},
	}
}

// buildStatus summarizes a credential file. tf may be nil (no session).
func buildStatus(tf *tokenfile.File, now time.Time) statusOutput {
	if tf == nil {
		return statusOutput{TokenState: tokenStateMissing}
	}

	out := statusOutput{
		SignedIn:   tf.Authorized,
		Username:   tf.Meta[tokenfile.MetaUsername],
		Email:      tf.Meta[tokenfile.MetaEmail],
		TokenState: tokenStateUnknown,
	}

	if exp := tf.Token.Expiry; !exp.IsZero() {
		out.TokenExpiry = &exp
		out.TokenState = tokenStateValid

		if !now.Before(exp) {
			out.TokenState = tokenStateExpired
		}
	}

	return out
}

func printStatusText(cc *CLIContext, s statusOutput) {
	if s.TokenState == tokenStateMissing {
		fmt.Fprintln(cc.Out, "Not logged in. Run 'verbi login' to get started.")
		return
	}

	state := "signed out"
	if s.SignedIn {
		state = "signed in"
	}

	fmt.Fprintf(cc.Out, "Session: %s\n", state)

	if s.Username != "" {
		fmt.Fprintf(cc.Out, "User:    %s (%s)\n", s.Username, s.Email)
	}

	expiry := "unknown"
	if s.TokenExpiry != nil {
		expiry = formatExpiry(s.TokenExpiry.Local(), time.Now())
	}

	fmt.Fprintf(cc.Out, "Token:   %s (expires %s)\n", s.TokenState, expiry)
	fmt.Fprintf(cc.Out, "File:    %s\n", s.TokenFile)
}
