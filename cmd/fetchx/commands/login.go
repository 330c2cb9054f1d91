package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fivetwenty-io/fetchx/internal/auth"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		tokenURL     string
		clientID     string
		clientSecret string
		username     string
		password     string
		token        string
		scopes       []string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the API",
		Long: `Obtain a token and store it in the CLI configuration.

With --client-id and --client-secret the OAuth2 client-credentials grant is used;
with --username the password grant. Without either, a bearer token is read from
--token or prompted for.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			if config.API == "" {
				return ErrAPIEndpointRequired
			}

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			authConfig := &auth.Config{
				Token:        token,
				TokenURL:     firstNonEmpty(tokenURL, config.TokenURL),
				ClientID:     firstNonEmpty(clientID, config.ClientID),
				ClientSecret: firstNonEmpty(clientSecret, config.ClientSecret),
				Username:     username,
				Password:     password,
				Scopes:       scopes,
			}

			if authConfig.Username != "" && authConfig.Password == "" {
				secret, err := promptSecret(in, out, "Password: ")
				if err != nil {
					return err
				}

				authConfig.Password = secret
			}

			if authConfig.Grant() == auth.GrantNone || (authConfig.Grant() == auth.GrantClientCredentials && authConfig.ClientSecret == "") {
				secret, err := promptSecret(in, out, "Token: ")
				if err != nil {
					return err
				}

				authConfig.Token = secret
			}

			source, err := auth.NewTokenSource(cmd.Context(), authConfig)
			if err != nil {
				return fmt.Errorf("failed to authenticate: %w", err)
			}

			issued, err := source.Token()
			if err != nil {
				return fmt.Errorf("failed to obtain token: %w", err)
			}

			config.TokenURL = authConfig.TokenURL
			config.ClientID = authConfig.ClientID
			config.ClientSecret = authConfig.ClientSecret
			config.Username = authConfig.Username
			config.RefreshToken = ""
			applyToken(config, issued)

			if err := saveConfigStruct(config); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "Authenticated with %s\n", config.API)

			return nil
		},
	}

	cmd.Flags().StringVar(&tokenURL, "token-url", "", "OAuth2 token endpoint")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username for the password grant")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&token, "token", "", "pre-issued bearer token (prompted when no grant is configured)")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "OAuth2 scopes")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			config.Token = ""
			config.RefreshToken = ""
			config.TokenExpiresAt = nil
			config.LastRefreshed = nil
			config.ClientSecret = ""
			config.Username = ""

			if err := saveConfigStruct(config); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")

			return nil
		},
	}
}

// promptSecret reads a secret without echo from a terminal, or a line from in otherwise.
func promptSecret(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(out, prompt)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		_, _ = fmt.Fprintln(out)

		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}

		return string(secret), nil
	}

	line, err := in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}
