package cli

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage access to the document source",
	Long: `Authorise ChangeLens to read the configured Google Drive folder.

The OAuth client comes from the [auth] section of the config file:

  [auth]
  client_id = "YOUR_CLIENT_ID"
  client_secret = "YOUR_CLIENT_SECRET"

The filesystem source needs no authentication.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorise read access to Google Drive",
	Long: `Prints a consent URL. After approving access the browser is redirected to
a local address that does not load; copy that address (or just its code
parameter) and paste it at the prompt. The token is stored in auth.token_file.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a usable token is stored",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	a, err := requireApp("OAuth login", func(a *App) bool { return a.Login != nil })
	if err != nil {
		return fmt.Errorf("%w; the configured source may not need authentication", err)
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	cmd.Println("Open this URL in a browser and approve access:")
	cmd.Println()
	cmd.Println("  " + a.Login.AuthCodeURL(state, verifier))
	cmd.Println()
	cmd.Print("Paste the redirect URL or code: ")

	input := readLine(bufio.NewReader(cmd.InOrStdin()))
	code, err := parseAuthCode(input, state)
	if err != nil {
		return err
	}

	if err := a.Login.Exchange(cmd.Context(), code, verifier); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	cmd.Println("Login successful.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	if app == nil || app.Login == nil {
		cmd.Println("The configured source needs no authentication.")
		return nil
	}
	if app.Login.IsAuthenticated() {
		cmd.Println("Authenticated.")
	} else {
		cmd.Println("Not authenticated. Run 'changelens auth login'.")
	}
	return nil
}

// parseAuthCode accepts a bare authorisation code or the full redirect URL.
// A URL must carry the expected state.
func parseAuthCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("no code entered")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorisation denied: %s", e)
	}
	if q.Get("state") != state {
		return "", errors.New("redirect URL state does not match this login")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code parameter")
	}
	return code, nil
}
