package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"naver-estate/config"
	"naver-estate/dashboard"
	"naver-estate/models"
	"naver-estate/rag"
	"naver-estate/services"
	"naver-estate/session"
	"naver-estate/storage"
	"naver-estate/utils"
)

const usage = `usage: naver-estate [command]

commands:
  crawl             collect listings and write the CSV (default)
  serve             run the dashboard API over the last crawl
  ask [-k] QUESTION answer a question from the crawled listings
  rebuild-index     rebuild the question-answering index
  refresh-cookies   renew session cookies with headless Chrome
`

const exitInterrupted = 130

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runContext(ctx, args, out)
}

// runContext dispatches one command and maps its outcome to an exit code.
func runContext(ctx context.Context, args []string, out io.Writer) int {
	cfg := config.Load()
	logger := newLogger(cfg)
	defer logger.Close()

	cmd := "crawl"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "crawl":
		logger.Info("=== Naver Land crawler starting ===")
		logger.Info("Config: retries %d | delay %v ms | backoff %v ms | output %s",
			cfg.MaxRetries, cfg.RequestDelayMs, cfg.RetryDelayMs, cfg.OutputPath)
		err = crawlCommand(ctx, cfg, logger, out)
	case "serve":
		err = serveCommand(ctx, cfg, logger)
	case "ask":
		err = askCommand(ctx, cfg, logger, args, out)
	case "rebuild-index":
		err = rebuildCommand(ctx, cfg, logger, out)
	case "refresh-cookies":
		err = refreshCookiesCommand(ctx, cfg, logger)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	switch {
	case err != nil && ctx.Err() != nil:
		logger.Warn("Interrupted by user; %s aborted before writing its output", cmd)
		return exitInterrupted
	case err != nil:
		logger.Error("%s failed: %v", cmd, err)
		return 1
	case ctx.Err() != nil && cmd != "serve":
		// serve treats a signal as its normal shutdown.
		logger.Warn("Interrupted by user after %s wrote its output", cmd)
		return exitInterrupted
	}
	return 0
}

func newLogger(cfg *config.Config) *utils.Logger {
	opts := utils.LoggerOptions{Level: cfg.LogLevel, FluentTag: "naver-estate"}
	if cfg.FluentEnabled {
		f, err := utils.NewFluentClient(cfg.FluentHost, cfg.FluentPort, "naver-estate")
		if err != nil {
			fmt.Fprintf(os.Stderr, "[config] Fluent Bit unavailable, logging to stdout only: %v\n", err)
		} else {
			opts.Fluent = f
		}
	}
	return utils.NewLoggerWithOptions(opts)
}

func newRAGSystem(cfg *config.Config, logger *utils.Logger) (*rag.System, error) {
	llm, embedder, err := rag.NewOpenAI(cfg.OpenAIAPIKey, cfg.ChatModel, cfg.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	return rag.NewSystem(rag.Options{
		CSVPath:      cfg.RAGCSVPath,
		CacheDir:     cfg.IndexCacheDir,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		TopK:         cfg.RetrieveTopK,
		EmbedWorkers: cfg.EmbedWorkers,
		Temperature:  cfg.Temperature,
	}, embedder, llm, logger), nil
}

// loadServeListings reads the dashboard snapshot from PostgreSQL when it is
// enabled and holds data, and from the crawl CSV otherwise.
func loadServeListings(ctx context.Context, cfg *config.Config, logger *utils.Logger) ([]*models.Listing, error) {
	if cfg.PostgresEnabled {
		listings, err := fetchStoredListings(ctx, cfg.DSN())
		switch {
		case err != nil:
			logger.Warn("[dashboard] PostgreSQL unavailable, falling back to %s: %v", cfg.OutputPath, err)
		case len(listings) == 0:
			logger.Warn("[dashboard] PostgreSQL holds no listings, falling back to %s", cfg.OutputPath)
		default:
			logger.Info("[dashboard] Loaded %d listings from PostgreSQL", len(listings))
			return listings, nil
		}
	}

	listings, err := dashboard.LoadListings(cfg.OutputPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load listings (run a crawl first): %w", err)
	}
	logger.Info("[dashboard] Loaded %d listings from %s", len(listings), cfg.OutputPath)
	return listings, nil
}

func fetchStoredListings(ctx context.Context, dsn string) ([]*models.Listing, error) {
	pg, err := storage.NewPostgresWriter(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer pg.Close()
	return pg.FetchAll(ctx, "")
}

func serveCommand(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	listings, err := loadServeListings(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var asker dashboard.Asker
	if sys, err := newRAGSystem(cfg, logger); err != nil {
		logger.Warn("[dashboard] Assistant disabled: %v", err)
	} else if err := sys.Setup(ctx, false); err != nil {
		logger.Warn("[dashboard] Assistant disabled: %v", err)
	} else {
		asker = sys
	}

	h := dashboard.NewHandler(listings, services.NewInsightService(logger), asker, logger)
	return dashboard.NewServer(cfg.DashboardAddr, h, logger).Start(ctx)
}

func askCommand(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	showSources := fs.Bool("k", false, "print the retrieved listings before the answer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	sys, err := newRAGSystem(cfg, logger)
	if err != nil {
		return err
	}
	if err := sys.Setup(ctx, false); err != nil {
		return err
	}

	if *showSources {
		docs, err := sys.Retrieve(ctx, question)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Retrieved %d documents\n", len(docs))
		for i, d := range docs {
			fmt.Fprintf(out, "\n[%d] score %.3f\n%s\n", i+1, d.Score, firstRunes(d.PageContent, 200))
		}
		fmt.Fprintln(out)
	}

	answer, err := sys.Ask(ctx, question)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, answer)
	return nil
}

func rebuildCommand(ctx context.Context, cfg *config.Config, logger *utils.Logger, out io.Writer) error {
	sys, err := newRAGSystem(cfg, logger)
	if err != nil {
		return err
	}
	if removed, err := sys.ClearCache(); err != nil {
		return err
	} else if removed {
		logger.Info("[rag] Removed previous index")
	}
	if err := sys.Rebuild(ctx); err != nil {
		return err
	}
	info := sys.CacheInfo()
	fmt.Fprintf(out, "Index written to %s (%.2f MB, %s)\n",
		info.Path, info.SizeMB, info.Modified.Format("2006-01-02 15:04:05"))
	return nil
}

func refreshCookiesCommand(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	if cfg.ProfilePath == "" {
		return errors.New("PROFILE_PATH must name the profile file to update")
	}

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("[session] %s does not exist yet, starting from the built-in profile", cfg.ProfilePath)
		profile, err = config.DefaultProfile()
	}
	if err != nil {
		return err
	}

	jar, err := session.NewRefresher(cfg.ChromeBin, logger).Harvest(ctx)
	if err != nil {
		return err
	}
	if err := profile.WithCookies(jar).Save(cfg.ProfilePath); err != nil {
		return err
	}
	logger.Info("[session] Profile %s updated with %d cookies", cfg.ProfilePath, len(jar))
	return nil
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
