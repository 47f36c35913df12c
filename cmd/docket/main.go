package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docket/internal/app"
	"github.com/ternarybob/docket/internal/common"
	"github.com/ternarybob/docket/internal/interfaces"
	"github.com/ternarybob/docket/internal/models"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	apiBaseURL   = flag.String("api", "", "Gateway base URL (overrides config)")
	apiBaseURLA  = flag.String("a", "", "Gateway base URL (shorthand, overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func usage() {
	fmt.Fprintf(os.Stderr, `Docket - client for the document ingestion platform

Usage:
  docket [flags] <command> [arguments]

Commands:
  upload <file>   Validate and upload a document (-w follows processing)
  list            Print the current document collection
  watch           Follow the collection until interrupted
  status          Probe gateway health

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load()

	flag.Usage = usage
	flag.Parse()

	// Handle version flag
	if *showVersion || *showVersionV {
		fmt.Printf("Docket version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	os.Exit(run())
}

func run() int {
	command := flag.Arg(0)
	if command == "" {
		usage()
		return 2
	}

	// Merge base URL flags (shorthand takes precedence)
	finalBaseURL := *apiBaseURL
	if *apiBaseURLA != "" {
		finalBaseURL = *apiBaseURLA
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	var err error

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("docket.toml"); err == nil {
			configFiles = append(configFiles, "docket.toml")
		}
	}

	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		return 1
	}

	// Apply command-line flag overrides (highest priority)
	common.ApplyFlagOverrides(config, finalBaseURL)

	// Initialize logger with final configuration
	logger = common.InitLogger(config)

	common.LoadVersionFromFile()

	logger.Debug().
		Str("base_url", config.API.BaseURL).
		Str("poll_interval", config.Sync.PollInterval).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	switch command {
	case "upload":
		return runUpload(application, flag.Args()[1:])
	case "list":
		return runList(application)
	case "watch":
		return runWatch(application)
	case "status":
		return runStatus(application)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		usage()
		return 2
	}
}

// runUpload validates and submits one file. With -w it then follows the
// document through the processing pipeline until a terminal state.
func runUpload(a *app.App, args []string) int {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	watchShort := fs.Bool("w", false, "Follow processing until a terminal state")
	watchLong := fs.Bool("watch", false, "Follow processing until a terminal state")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: docket upload [-w] <file>")
		return 2
	}
	path := fs.Arg(0)

	doc, err := a.UploadService.Submit(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		return 1
	}

	renderDocument(os.Stdout, *doc)

	if !*watchShort && !*watchLong {
		return 0
	}

	return followDocument(a, doc.ID)
}

// followDocument polls the synchronized collection until the document reaches
// COMPLETED or FAILED, or the user interrupts.
func followDocument(a *app.App, id int64) int {
	if err := a.SyncService.Start(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to start synchronizer")
		return 1
	}

	fmt.Printf("Waiting for processing of document %d (Ctrl+C to stop)...\n", id)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastStatus := ""
	for {
		select {
		case <-sigChan:
			fmt.Println("\nStopped")
			return 0
		case <-ticker.C:
			doc, found := a.SyncService.Document(id)
			if !found {
				continue
			}
			if string(doc.Status) != lastStatus {
				lastStatus = string(doc.Status)
				renderDocument(os.Stdout, doc)
			}
			if doc.IsTerminal() {
				if doc.Status == models.StatusFailed {
					return 1
				}
				return 0
			}
		}
	}
}

// runList performs a single refresh and prints the collection
func runList(a *app.App) int {
	if err := a.SyncService.Refresh(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch documents: %v\n", err)
		return 1
	}

	renderTable(os.Stdout, a.SyncService.Documents())
	return 0
}

// runWatch follows the collection, re-rendering on every refresh
func runWatch(a *app.App) int {
	common.PrintBanner(common.GetVersion())

	a.EventService.Subscribe(interfaces.EventCollectionRefreshed, func(ctx context.Context, event interfaces.Event) error {
		renderTable(os.Stdout, a.SyncService.Documents())
		return nil
	})
	a.EventService.Subscribe(interfaces.EventSyncFailed, func(ctx context.Context, event interfaces.Event) error {
		fmt.Fprintf(os.Stderr, "sync error: %v\n", event.Payload)
		return nil
	})

	if err := a.Start(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to start application")
		return 1
	}

	fmt.Printf("Watching documents at %s (Ctrl+C to stop)\n", config.API.BaseURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nStopped")
	return 0
}

// runStatus probes the gateway liveness endpoint and summarizes the collection
func runStatus(a *app.App) int {
	if err := a.Client.Health(context.Background()); err != nil {
		fmt.Printf("Gateway %s: unreachable (%v)\n", config.API.BaseURL, err)
		return 1
	}
	fmt.Printf("Gateway %s: ok\n", config.API.BaseURL)

	if err := a.SyncService.Refresh(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch documents: %v\n", err)
		return 1
	}

	counts := make(map[models.DocumentStatus]int)
	docs := a.SyncService.Documents()
	for _, doc := range docs {
		counts[doc.Status]++
	}
	fmt.Printf("Documents: %d total, %d pending, %d processing, %d completed, %d failed\n",
		len(docs),
		counts[models.StatusPending], counts[models.StatusProcessing],
		counts[models.StatusCompleted], counts[models.StatusFailed])

	if logPath := common.GetLogFilePath(logger); logPath != "" {
		fmt.Printf("Log file: %s\n", logPath)
	}
	return 0
}
