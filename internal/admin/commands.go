// Package admin implements authctl, the operator CLI: applying migrations
// and creating accounts without going through the HTTP API.
package admin

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/validation"
	"github.com/spf13/cobra"
)

// Env carries the command's collaborators so tests can replace them.
type Env struct {
	In         io.Reader
	Out        io.Writer
	LoadConfig func() *config.Config
	OpenDB     func(dsn string) (*sql.DB, error)
	Repos      func() repomanager.RepositoryManager
	Logger     logging.Logger
}

// NewRootCommand builds the authctl command tree.
func NewRootCommand(env Env) *cobra.Command {
	var configPath, dsn string

	root := &cobra.Command{
		Use:           "authctl",
		Short:         "gophauth administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(env.In)
	root.SetOut(env.Out)

	// Both are also read by config.LoadConfig from os.Args; declaring them
	// here keeps cobra from rejecting them.
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON config file")
	root.PersistentFlags().StringVarP(&dsn, "dsn", "d", "", "PostgreSQL DSN")

	root.AddCommand(
		newMigrateCommand(env),
		newCreateUserCommand(env),
	)
	return root
}

func (env Env) open() (*config.Config, *sql.DB, error) {
	cfg := env.LoadConfig()
	db, err := env.OpenDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}

func newMigrateCommand(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := env.open()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := env.Repos().RunMigrations(cmd.Context(), db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newCreateUserCommand(env Env) *cobra.Command {
	var email, fullname, displayName string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Register an account, prompting for its password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if fullname == "" {
				var err error
				fullname, err = getSimpleText(bufio.NewReader(cmd.InOrStdin()), "Full name", out)
				if err != nil {
					return err
				}
			}

			pw, err := getNewPassword(out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			req := validation.RegisterRequest{Email: email, Fullname: fullname, Password: string(pw)}
			if displayName != "" {
				req.DisplayName = &displayName
			}
			if err := req.Validate(); err != nil {
				return err
			}

			cfg, db, err := env.open()
			if err != nil {
				return err
			}
			defer db.Close()

			users := services.NewUserService(services.Deps{
				DB:     db,
				Repos:  env.Repos(),
				Hasher: auth.NewBcryptHasher(cfg.BcryptCost),
				Logger: env.Logger,
			})
			res, err := users.Register(cmd.Context(), services.RegisterInput{
				Email:       req.Email,
				Fullname:    req.Fullname,
				Password:    req.Password,
				DisplayName: req.DisplayName,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s (id=%d)\n", res.Message, res.User.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&fullname, "fullname", "", "full name (prompted when omitted)")
	cmd.Flags().StringVar(&displayName, "display-name", "", "optional display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
