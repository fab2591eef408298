package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/agent"
	"github.com/danpilch/tripdesk/internal/api/flights"
	"github.com/danpilch/tripdesk/internal/api/websearch"
	"github.com/danpilch/tripdesk/internal/catalog"
	"github.com/danpilch/tripdesk/internal/checkout"
	"github.com/danpilch/tripdesk/internal/config"
	"github.com/danpilch/tripdesk/internal/conversation"
	"github.com/danpilch/tripdesk/internal/intent"
	"github.com/danpilch/tripdesk/internal/mcpserver"
	"github.com/danpilch/tripdesk/internal/notify"
	"github.com/danpilch/tripdesk/internal/scheduler"
	"github.com/danpilch/tripdesk/internal/scraper"
	"github.com/danpilch/tripdesk/internal/server"
	"github.com/danpilch/tripdesk/internal/station"
	"github.com/danpilch/tripdesk/internal/travel"
)

var version = "dev"

type Globals struct {
	Config   string           `help:"Path to config file" default:"config.yaml" type:"path"`
	LogLevel string           `help:"Override the configured log level"`
	Version  kong.VersionFlag `help:"Print version and exit"`
}

var CLI struct {
	Globals

	Serve  ServeCmd  `cmd:"" default:"withargs" help:"Run the HTTP gateway and maintenance scheduler"`
	Trains TrainsCmd `cmd:"" help:"Scrape a train listing and print the catalog"`
	Book   BookCmd   `cmd:"" help:"Select a train and drive it to the checkout page"`
	Parse  ParseCmd  `cmd:"" help:"Print the parsed form of a trip request"`
	MCP    MCPCmd    `cmd:"" name:"mcp" help:"Serve the travel tools over MCP on stdio"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("tripdesk"),
		kong.Description("Conversational travel desk: listings, booking up to checkout, trip search."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	kctx.FatalIfErrorf(kctx.Run(&CLI.Globals))
}

func newLogger(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// loadConfig falls back to defaults when the config file does not exist.
func loadConfig(path string) (*config.Config, bool, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig).Info("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// app holds the services shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	scraper  *scraper.Scraper
	trains   *travel.TrainService
	listings *travel.ListingService
}

func newApp(g *Globals, logOut io.Writer) (*app, error) {
	cfg, fromFile, err := loadConfig(g.Config)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if g.LogLevel != "" {
		level = g.LogLevel
	}
	logger := newLogger(level, logOut)
	if !fromFile {
		logger.WithField("path", g.Config).Info("config file not found, using defaults")
	}

	resolver := station.NewResolver()
	sc := scraper.New(cfg.Scraper, resolver, logger)
	automator := checkout.NewAutomator(checkout.NewChrome(cfg.Checkout, cfg.Scraper.UserAgent, logger), cfg.Checkout, logger)

	// Left as a nil interface when unconfigured so the train service skips it.
	var notifier travel.Notifier
	pushoverToken := os.Getenv("PUSHOVER_TOKEN")
	pushoverUser := os.Getenv("PUSHOVER_USER")
	if pushoverToken != "" && pushoverUser != "" {
		notifier = notify.NewNotifier(pushoverToken, pushoverUser, logger)
	} else {
		logger.Debug("PUSHOVER_TOKEN or PUSHOVER_USER not set, checkout notifications disabled")
	}

	flightClient := flights.NewClient(cfg.APIs.FlightsURL)
	searchClient := websearch.NewClient(cfg.APIs.PerplexityURL, cfg.APIs.DuckDuckGoURL, os.Getenv("PERPLEXITY_API_KEY"))

	return &app{
		cfg:      cfg,
		logger:   logger,
		scraper:  sc,
		trains:   travel.NewTrainService(sc, automator, notifier, catalog.ParseClasses(cfg.Booking.AllowedClasses), logger),
		listings: travel.NewListingService(sc, flightClient, searchClient, resolver, logger),
	}, nil
}

type ServeCmd struct{}

func (c *ServeCmd) Run(g *Globals) error {
	a, err := newApp(g, os.Stdout)
	if err != nil {
		return err
	}
	logger := a.logger
	ctx, cancel := signalContext(logger)
	defer cancel()

	store, err := conversation.Open(a.cfg, logger)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithField("error", err).Warn("closing conversation store")
		}
	}()

	backend, err := agent.New(ctx, a.cfg.Agent, agent.Deps{
		Trains:   a.trains,
		Listings: a.listings,
		APIKey:   firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("starting agent backend: %w", err)
	}

	sched := scheduler.NewScheduler(a.cfg.Maintenance.Interval.Std(), store, a.scraper, logger)

	logger.WithFields(logrus.Fields{
		"version": version,
		"addr":    a.cfg.Server.Addr(),
		"agent":   backend.Name(),
		"store":   a.cfg.Store.Backend,
	}).Info("starting tripdesk")

	sched.Start(ctx)
	srv := server.New(a.cfg.Server, server.Deps{
		Agent:    backend,
		Store:    store,
		Trains:   a.trains,
		Listings: a.listings,
		Version:  version,
	}, logger)
	err = srv.Run(ctx)

	sched.Stop()
	logger.Info("tripdesk stopped")
	return err
}

type TrainsCmd struct {
	Origin      string `arg:"" optional:"" help:"Departure city"`
	Destination string `arg:"" optional:"" help:"Arrival city"`
	Date        string `arg:"" optional:"" help:"Travel date (YYYY-MM-DD or DD-MM-YYYY)"`
	URL         string `help:"Scrape this listing URL instead of building one"`
	JSON        bool   `help:"Print the result as JSON"`
}

func (c *TrainsCmd) Run(g *Globals) error {
	if c.URL == "" && (c.Origin == "" || c.Destination == "") {
		return errors.New("either --url or both origin and destination are required")
	}
	a, err := newApp(g, os.Stderr)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(a.logger)
	defer cancel()

	var l *travel.Listing
	if c.URL != "" {
		l = a.trains.List(ctx, c.URL)
	} else {
		l = a.trains.Search(ctx, c.Origin, c.Destination, c.Date)
	}
	if c.JSON {
		return printJSON(l)
	}
	fmt.Println(l.Message)
	if l.Status == scraper.StatusSuccess {
		fmt.Println("Listing: " + l.URL)
		fmt.Println(l.Display)
	}
	return nil
}

type BookCmd struct {
	URL   string `arg:"" help:"Listing URL from the trains command"`
	Index int    `arg:"" help:"Train index in the listing"`
	Class string `arg:"" help:"Coach class code, e.g. 3A"`
	JSON  bool   `help:"Print the result as JSON"`
}

func (c *BookCmd) Run(g *Globals) error {
	a, err := newApp(g, os.Stderr)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(a.logger)
	defer cancel()

	idx := c.Index
	res, err := a.trains.Book(ctx, travel.BookRequest{URL: c.URL, Index: &idx, Class: strings.ToUpper(c.Class)})
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(res)
	}
	fmt.Println(res.Display)
	return nil
}

type ParseCmd struct {
	Text []string `arg:"" help:"Trip request text"`
}

func (c *ParseCmd) Run(g *Globals) error {
	return printJSON(intent.Parse(strings.Join(c.Text, " ")))
}

type MCPCmd struct{}

func (c *MCPCmd) Run(g *Globals) error {
	// stdout carries the protocol.
	a, err := newApp(g, os.Stderr)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(a.logger)
	defer cancel()

	srv, err := mcpserver.New(a.trains, a.listings, version, a.logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
