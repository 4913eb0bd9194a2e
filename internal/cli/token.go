package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgo/craftlink/internal/model"
	"github.com/forgo/craftlink/pkg/jwt"
)

type tokenOptions struct {
	userID  string
	role    string
	keyPath string
	expMins int
}

// TokenOutput is the structured result of the token command
type TokenOutput struct {
	AccessToken string    `json:"access_token" yaml:"access_token"`
	TokenType   string    `json:"token_type" yaml:"token_type"`
	UserID      string    `json:"user_id" yaml:"user_id"`
	Role        string    `json:"role" yaml:"role"`
	ExpiresAt   time.Time `json:"expires_at" yaml:"expires_at"`
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.Role(opts.role).IsValid() {
				return fmt.Errorf("invalid role %q: must be client, craftsman or admin", opts.role)
			}
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			keyPath := opts.keyPath
			if keyPath == "" {
				keyPath = cfg.JWT.PrivateKeyPath
			}
			expMins := opts.expMins
			if expMins <= 0 {
				expMins = cfg.JWT.ExpirationMins
			}

			svc, err := jwt.NewService(jwt.Config{
				PrivateKeyPath: keyPath,
				Issuer:         cfg.JWT.Issuer,
				ExpirationMins: expMins,
			})
			if err != nil {
				return fmt.Errorf("creating JWT service: %w", err)
			}
			token, err := svc.Issue(opts.userID, opts.role)
			if err != nil {
				return err
			}

			out := TokenOutput{
				AccessToken: token,
				TokenType:   "Bearer",
				UserID:      opts.userID,
				Role:        opts.role,
				ExpiresAt:   time.Now().Add(svc.GetExpiration()).UTC().Truncate(time.Second),
			}
			if rootOpts.Format != "text" {
				return writeStructured(cmd.OutOrStdout(), rootOpts.Format, out)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.userID, "user", "u", "", "user id the token is issued to")
	cmd.Flags().StringVarP(&opts.role, "role", "r", string(model.RoleClient), "role to act in (client|craftsman|admin)")
	cmd.Flags().StringVar(&opts.keyPath, "key", "", "private key path (defaults to JWT_PRIVATE_KEY_PATH)")
	cmd.Flags().IntVar(&opts.expMins, "exp", 0, "lifetime in minutes (defaults to JWT_EXPIRATION_MINS)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
