package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jogardn/xconnect/internal/config"
	"github.com/jogardn/xconnect/internal/logging"
	"github.com/jogardn/xconnect/internal/lspmock"
	"github.com/jogardn/xconnect/pkg/transport"
	"github.com/sirupsen/logrus"
)

// lsp-mock plays the translation provider on the agent's local root: run
// the agent with XCONNECT_PROTOCOL=local and the same XCONNECT_LOCAL_ROOT.
func main() {
	envFile := flag.String("env", ".env", "Path to the .env file")
	interval := flag.Duration("interval", 10*time.Second, "How often to look for new orders")
	issuedBy := flag.String("issued-by", "lsp-mock", "IssuedBy written into delivery manifests")
	once := flag.Bool("once", false, "Process waiting orders once and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	service, err := transport.NewLocal(cfg.LocalRoot, cfg.Directories())
	if err != nil {
		logger.WithError(err).Fatal("Failed to prepare provider directories")
	}
	provider := lspmock.New(service, logger, lspmock.WithIssuedBy(*issuedBy))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		handled, err := provider.ProcessOrders(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Failed to process orders")
		}
		logger.WithField("handled", handled).Info("Orders processed")
		return
	}

	logger.WithFields(logrus.Fields{
		"root":     service.Root(),
		"interval": interval.String(),
	}).Info("LSP mock started")

	provider.Run(ctx, *interval)
	logger.Info("LSP mock stopped")
}
