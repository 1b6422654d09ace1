package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"
	"go.uber.org/zap"

	"pos_ledger/api"
	"pos_ledger/internal/config"
)

type serveCmd struct {
	cfg  *config.Config
	port string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "runs the HTTP API" }
func (*serveCmd) Usage() string {
	return `pos serve [-port <port>]

  Serves the cart, checkout, sales, transactions, migration and report
  endpoints on top of the configured store (STORE_BACKEND).
`
}

func (p *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.port, "port", "", "Port to listen on. Defaults to $PORT.")
}

func (p *serveCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	deps, cleanup, err := setup(p.cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	if p.cfg.Server.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	api.InitRoutes(r, deps)

	port := p.port
	if port == "" {
		port = p.cfg.Server.Port
	}
	deps.Logger.Info("starting server",
		zap.String("port", port),
		zap.String("backend", p.cfg.Store.Backend),
		zap.String("env", p.cfg.Server.Env),
	)
	if err := r.Run(":" + port); err != nil {
		deps.Logger.Error("error trying to start server", zap.Error(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
