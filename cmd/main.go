package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/andesco/tagladder/handlers"
	"github.com/andesco/tagladder/pkg/search"
	"github.com/andesco/tagladder/pkg/taglib"

	"github.com/akamensky/argparse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

var version = "dev"

func main() {
	parser := argparse.NewParser("tagladder", "Proxy that injects tracking tags into HTML pages")

	portEnv := os.Getenv("PORT")
	if portEnv == "" {
		portEnv = "8080"
	}
	port := parser.String("p", "port", &argparse.Options{
		Required: false,
		Default:  portEnv,
		Help:     "Port the webserver will listen on",
	})
	originURL := parser.String("o", "origin", &argparse.Options{
		Required: false,
		Default:  os.Getenv("ORIGIN_URL"),
		Help:     "Origin server to forward requests to, eg: https://movies.example.com",
	})
	configPath := parser.String("c", "config", &argparse.Options{
		Required: false,
		Default:  os.Getenv("CONFIG"),
		Help:     "YAML file with tracking identifiers, env variables take precedence",
	})
	enableSearch := parser.Flag("s", "search", &argparse.Options{
		Required: false,
		Default:  os.Getenv("SEARCH") == "true",
		Help:     "Serve /api/stats from Meilisearch, requires MEILISEARCH_URL and MEILISEARCH_SEARCH_KEY",
	})
	timeout := parser.Int("t", "timeout", &argparse.Options{
		Required: false,
		Default:  envInt("HTTP_TIMEOUT", 15),
		Help:     "Origin request timeout in seconds",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	setupLogger()

	if err := run(*port, *originURL, *configPath, *enableSearch, time.Duration(*timeout)*time.Second); err != nil {
		log.Fatal().Err(err).Msg("tagladder stopped")
	}
}

func run(port, originURL, configPath string, enableSearch bool, timeout time.Duration) error {
	if originURL == "" {
		return errors.New("no origin configured, set ORIGIN_URL or use --origin")
	}
	origin, err := url.Parse(originURL)
	if err != nil {
		return fmt.Errorf("invalid origin URL '%s': %w", originURL, err)
	}

	cfg, err := taglib.LoadConfig(configPath)
	if err != nil {
		return err
	}
	for _, s := range taglib.Services() {
		if cfg[s] == "" {
			log.Warn().Str("service", string(s)).Msg("no identifier configured, snippet will be omitted")
		}
	}

	inj := taglib.NewInjector(timeout)
	inj.LogURLs = os.Getenv("LOG_URLS") == "true"

	opts := handlers.ServerOptions{
		Origin:         origin,
		Injector:       inj,
		Config:         cfg,
		ExposeSnippets: os.Getenv("EXPOSE_SNIPPETS") != "false",
		Registry:       prometheus.NewRegistry(),
	}

	if enableSearch {
		searchCfg, err := search.LoadConfig()
		if err != nil {
			return err
		}
		opts.Search = search.NewClient(searchCfg, &http.Client{Timeout: timeout})
	}

	app := handlers.NewServer(opts)

	log.Info().
		Str("version", version).
		Str("origin", origin.String()).
		Str("port", port).
		Bool("search", enableSearch).
		Msg("tagladder listening")
	return app.Listen(":" + port)
}

// setupLogger writes human readable logs on a terminal and JSON otherwise.
func setupLogger() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("LOG_URLS") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
