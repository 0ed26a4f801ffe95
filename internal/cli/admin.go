package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quiz-learning-service/internal/app"
	"quiz-learning-service/internal/config"
	"quiz-learning-service/internal/logging"
)

// NewCreateAdminCmd bootstraps the first administrator. Later administrators
// are created over the API by an existing one.
func NewCreateAdminCmd(configPath *string) *cobra.Command {
	var in app.RegisterInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured; an in-memory administrator would not outlive this command")
			}
			log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

			d, err := buildDeps(cmd.Context(), cfg, log, nil)
			if err != nil {
				return err
			}
			defer d.Close()

			user, err := d.services.Auth.BootstrapAdministrator(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "administrator %s created (%s)\n", user.Name, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "administrator name")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "login phone")
	cmd.Flags().StringVar(&in.Password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
