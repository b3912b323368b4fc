package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quipper/poc/sis/be/internal/bootstrap"
	"github.com/quipper/poc/sis/be/internal/config"
	"github.com/quipper/poc/sis/be/pkg/common/keys"
	"github.com/quipper/poc/sis/be/pkg/common/logger"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")

	root := &cobra.Command{
		Use:           "sisadmin",
		Short:         "Administrative tasks for the student information system",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "YAML config file (env CONFIG_PATH)")

	withApp := func(fn func(ctx context.Context, app *bootstrap.App) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.InitializeWith(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
			defer logger.Sync()
			app, err := bootstrap.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return fn(cmd.Context(), app)
		}
	}

	// user create
	var nu users.NewUser
	userCmd := &cobra.Command{Use: "user", Short: "Manage users"}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account and its profile (e.g. the first registrar)",
		RunE: withApp(func(ctx context.Context, app *bootstrap.App) error {
			if nu.Email == "" || nu.Password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			if !nu.Role.Valid() {
				return fmt.Errorf("--role must be one of student, lecturer, registrar")
			}
			u, err := app.Users.Create(ctx, nu)
			if err != nil {
				return err
			}
			return printJSON(u)
		}),
	}
	createCmd.Flags().StringVar(&nu.Email, "email", "", "account email")
	createCmd.Flags().StringVar(&nu.Password, "password", "", "initial password")
	createCmd.Flags().StringVar(&nu.Name, "name", "", "display name")
	createCmd.Flags().StringVar((*string)(&nu.Role), "role", string(users.RoleRegistrar), "student | lecturer | registrar")
	userCmd.AddCommand(createCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair drift between identity accounts and user profiles",
		RunE: withApp(func(ctx context.Context, app *bootstrap.App) error {
			rep, err := app.Reconciler.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(rep)
		}),
	}

	// keys generate
	var kid string
	keysCmd := &cobra.Command{Use: "keys", Short: "Session signing keys"}
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a new RSA signing key as PLATFORM_* environment lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kid == "" {
				kid = uuid.NewString()
			}
			key, err := keys.Generate()
			if err != nil {
				return err
			}
			fmt.Printf("PLATFORM_KID=%s\n", kid)
			fmt.Printf("PLATFORM_PRIVATE_KEY_B64=%s\n", base64.StdEncoding.EncodeToString(keys.EncodePEM(key)))
			return nil
		},
	}
	generateCmd.Flags().StringVar(&kid, "kid", "", "key id (random when empty)")
	keysCmd.AddCommand(generateCmd)

	root.AddCommand(userCmd, reconcileCmd, keysCmd)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
