package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/admin"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {

	root := admin.NewRootCommand(admin.Env{
		In:         os.Stdin,
		Out:        os.Stdout,
		LoadConfig: config.LoadConfig,
		OpenDB: func(dsn string) (*sql.DB, error) {
			return sql.Open("pgx", dsn)
		},
		Repos:  repomanager.NewPostgresRepositoryManager,
		Logger: logging.NewJSONLogger(os.Stderr, "warn"),
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "authctl:", err)
		os.Exit(1)
	}

}
