package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"eve-intel-reporter/internal/client"
	"eve-intel-reporter/internal/config"
	"eve-intel-reporter/internal/logging"
	"eve-intel-reporter/internal/reporter"
)

var BuildVersion = "dev"

const defaultHTTPTimeout = 10 * time.Second

func main() {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	opts, err := config.ParseOptions(config.DefaultLogDir)
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := config.ValidateRequired(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lock, lockedByOther, lockErr := acquireInstanceLock()
	if lockErr != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize single-instance lock:", lockErr)
		os.Exit(2)
	}
	if lockedByOther {
		fmt.Fprintln(os.Stderr, "EVE Intel Reporter is already running.")
		os.Exit(1)
	}
	defer func() {
		_ = lock.Release()
	}()

	if err := run(rootCtx, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts config.Options) error {
	logger := logging.New(opts.Debug)

	endpoints, err := config.BuildEndpoints(opts.ReportURL, opts.ChannelListURL)
	if err != nil {
		return err
	}
	logger.Debug("constructed service endpoints",
		logging.Field("report_url", endpoints.ReportURL),
		logging.Field("channel_list_url", endpoints.ChannelListURL),
	)

	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	intelClient := client.New(httpClient, endpoints, BuildVersion, logger)

	app := reporter.New(reporter.Options{
		Username:     opts.Username,
		PasswordHash: client.HashPassword(opts.Password),
		LogDir:       opts.LogDir,
	}, intelClient, logger, reporter.Callbacks{})
	defer app.Dispose()

	if err := app.Start(ctx); err != nil {
		return err
	}
	logger.Info("intel reporter running",
		logging.Field("version", BuildVersion),
		logging.Field("log_dir", opts.LogDir),
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	app.Stop()
	return nil
}
