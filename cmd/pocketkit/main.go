package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"pocketkit/internal/app"
	"pocketkit/internal/cache"
	"pocketkit/internal/config"
	"pocketkit/internal/logger"
	"pocketkit/internal/pocket"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: pocketkit [-config file] <command> [arguments]\n\n")
		app.Usage(flag.CommandLine.Output())
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error parsing log level: %v", err)
	}
	appLogger := logger.New(level)

	httpClient := &http.Client{Timeout: cfg.Pocket.HTTPTimeout}

	authenticator, err := pocket.NewAuthenticator(cfg.Pocket.BaseURL, cfg.Pocket.ConsumerKey, httpClient)
	if err != nil {
		log.Fatalf("Error creating Pocket authenticator: %v", err)
	}

	opts := []app.Option{
		app.WithConfig(cfg),
		app.WithLogger(appLogger),
		app.WithAuthenticator(authenticator),
		app.WithStore(cache.NewStore(cfg.Cache.Path)),
	}

	// Every command but auth needs an access token.
	token, err := cfg.Token()
	switch {
	case err == nil:
		client, err := pocket.NewClient(cfg.Pocket.BaseURL, cfg.Pocket.ConsumerKey, token,
			pocket.WithHTTPClient(httpClient),
			pocket.WithLogger(appLogger),
		)
		if err != nil {
			log.Fatalf("Error creating Pocket client: %v", err)
		}
		opts = append(opts, app.WithClient(client))
	case errors.Is(err, config.ErrNoAccessToken):
		appLogger.Debugf("No access token configured")
	default:
		log.Fatalf("Error reading access token. This usually means the token was sealed with a different POCKET_TOKEN_KEY. Run the auth command again. Original error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.NewApp(opts...).Run(ctx, flag.Args()); err != nil {
		if errors.Is(err, app.ErrUsage) {
			flag.Usage()
		}
		appLogger.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
