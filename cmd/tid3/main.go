package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/Override92/tid3/internal/config"
	"github.com/Override92/tid3/internal/database"
	"github.com/Override92/tid3/internal/encryption"
	"github.com/Override92/tid3/internal/event"
	"github.com/Override92/tid3/internal/fingerprint"
	"github.com/Override92/tid3/internal/logging"
	"github.com/Override92/tid3/internal/match"
	"github.com/Override92/tid3/internal/provider"
	"github.com/Override92/tid3/internal/provider/acoustid"
	"github.com/Override92/tid3/internal/provider/discogs"
	"github.com/Override92/tid3/internal/provider/musicbrainz"
	"github.com/Override92/tid3/internal/reconcile"
	"github.com/Override92/tid3/internal/tagio"
	"github.com/Override92/tid3/internal/track"
	"github.com/Override92/tid3/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "match":
		err = runMatch(os.Args[2:])
	case "identify":
		err = runIdentify(os.Args[2:])
	case "art":
		err = runArt(os.Args[2:])
	case "keys":
		err = runKeys(os.Args[2:])
	case "version":
		fmt.Println(version.Version)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tid3 <command> [flags]

commands:
  match     search metadata sources for the given files, rank candidates
            and show the proposed tag changes
  identify  fingerprint a file with chromaprint and look it up on AcoustID
  art       show, embed or extract the file's front cover
  keys      manage source API keys (set, test, delete, status)
  version   print the version`)
}

// app bundles the long-lived services every subcommand needs.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	logs         *logging.Manager
	bus          *event.Bus
	settings     *provider.SettingsService
	registry     *provider.Registry
	orchestrator *provider.Orchestrator
	tags         *tagio.Service
	tracks       *track.WorkingSet
	engine       *reconcile.Engine
	ranker       *match.Ranker

	close func()
}

func newApp(ctx context.Context) (*app, error) {
	configPath := os.Getenv("TID3_CONFIG_PATH")
	if configPath == "" {
		configPath = "/data/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
	})
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logManager.Close() //nolint:errcheck
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		logManager.Close() //nolint:errcheck
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	encryptor, err := buildEncryptor(cfg, logger)
	if err != nil {
		_ = db.Close()
		logManager.Close() //nolint:errcheck
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	bus := event.NewBus(logger, 256)
	go bus.Start()

	rateLimiters := provider.NewRateLimiterMap()
	settings := provider.NewSettingsService(db, encryptor)
	registry := provider.NewRegistry()
	registry.Register(discogs.New(rateLimiters, settings, logger))
	registry.Register(musicbrainz.New(rateLimiters, logger))
	registry.RegisterFingerprint(acoustid.New(rateLimiters, settings, logger))

	cache := provider.NewResultCache()
	orchestrator := provider.NewOrchestrator(registry, cache, bus, logger)

	tags := tagio.NewService(bus, logger)
	tracks := track.NewWorkingSet(bus, logger)
	engine := reconcile.NewEngine(bus, logger)
	tracks.OnRemove(engine.Release)

	ranker := match.NewRanker(cfg.EngineSettings(), engine, logger)

	a := &app{
		cfg:          cfg,
		logger:       logger,
		logs:         logManager,
		bus:          bus,
		settings:     settings,
		registry:     registry,
		orchestrator: orchestrator,
		tags:         tags,
		tracks:       tracks,
		engine:       engine,
		ranker:       ranker,
	}
	a.close = func() {
		bus.Stop()
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
		logManager.Close() //nolint:errcheck
	}

	_ = ctx
	return a, nil
}

func runMatch(args []string) error {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	write := fs.Bool("write", false, "save accepted changes back to the files")
	acceptAll := fs.Bool("accept-all", false, "accept every proposed change of the applied candidate")
	verbose := fs.Bool("v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("match: no files given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	if *verbose {
		debugLogging(a)
	}

	if err := loadFiles(a, fs.Args()); err != nil {
		return err
	}

	// Source searches are rate limited and can take a while; watch the
	// loaded files so external edits surface before we save over them.
	watcher := track.NewWatcher(a.tracks, a.bus, a.logger)
	go watcher.Start(ctx)

	for _, tr := range a.tracks.Tracks() {
		outcome, err := a.orchestrator.Search(ctx, tr.Path, tr.SearchQuery())
		if err != nil {
			return fmt.Errorf("searching for %s: %w", tr.DisplayName(), err)
		}

		res, err := a.ranker.Rank(tr, outcome.Candidates, a.tracks.Count())
		if err != nil {
			return fmt.Errorf("ranking candidates for %s: %w", tr.DisplayName(), err)
		}

		printRanked(res)
		if !res.AutoApplied {
			continue
		}
		if *acceptAll {
			n := a.engine.AcceptAll(res.Track)
			fmt.Printf("accepted %d change(s) for %s\n", n, res.Track.DisplayName())
		}
		if summary := a.engine.Summary(res.Track); summary != "" {
			fmt.Println(summary)
		}
		if *write && *acceptAll {
			if loadedAt, ok := a.tracks.LoadedAt(res.Track.Path); ok {
				if check := track.CheckFileConflict(res.Track.Path, loadedAt); check.HasConflict {
					return fmt.Errorf("not saving %s: %s", res.Track.Path, check.Reason)
				}
			}
			if err := a.tags.Write(res.Track); err != nil {
				return err
			}
			fmt.Printf("saved %s\n", res.Track.Path)
		}
	}
	return nil
}

func runIdentify(args []string) error {
	fs := flag.NewFlagSet("identify", flag.ExitOnError)
	verbose := fs.Bool("v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("identify: exactly one file expected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	if *verbose {
		debugLogging(a)
	}

	if !a.cfg.Fingerprint.Enabled {
		return fmt.Errorf("fingerprinting is disabled in config")
	}

	generator := fingerprint.NewGenerator(a.cfg.Fingerprint.FpcalcPath, a.logger)
	service := fingerprint.NewService(generator, a.orchestrator)
	if !service.IsEnabled() {
		return fingerprint.ErrFpcalcNotFound
	}

	path := fs.Arg(0)
	outcome, err := service.Identify(ctx, path)
	if err != nil {
		return err
	}

	sort.SliceStable(outcome.Candidates, func(i, j int) bool {
		return outcome.Candidates[i].Relevance > outcome.Candidates[j].Relevance
	})
	for _, c := range outcome.Candidates {
		title := c.Title
		if title == "" && len(c.Tracks) > 0 {
			title = c.Tracks[0].Title
		}
		fmt.Printf("%.2f  %s - %s (%s)\n", c.Relevance, c.Artist, title, c.Source)
	}
	return nil
}

func runKeys(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("keys: expected set, delete or status")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	switch args[0] {
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("keys set: expected <source> <key>")
		}
		name := provider.SourceName(strings.ToLower(args[1]))
		if err := a.settings.SetAPIKey(ctx, name, args[2]); err != nil {
			return err
		}
		fmt.Printf("stored API key for %s\n", name.DisplayName())
		return nil
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("keys delete: expected <source>")
		}
		name := provider.SourceName(strings.ToLower(args[1]))
		if err := a.settings.DeleteAPIKey(ctx, name); err != nil {
			return err
		}
		fmt.Printf("deleted API key for %s\n", name.DisplayName())
		return nil
	case "test":
		if len(args) != 2 && len(args) != 3 {
			return fmt.Errorf("keys test: expected <source> [key]")
		}
		name := provider.SourceName(strings.ToLower(args[1]))
		src := a.registry.Get(name)
		if src == nil {
			if a.registry.GetFingerprint(name) != nil {
				return fmt.Errorf("keys test: %s does not support connection tests", name.DisplayName())
			}
			return fmt.Errorf("keys test: unknown source %q", args[1])
		}
		testable, ok := src.(provider.TestableSource)
		if !ok {
			return fmt.Errorf("keys test: %s does not support connection tests", name.DisplayName())
		}
		testCtx := ctx
		persist := true
		if len(args) == 3 {
			// An unsaved key is tested via the context override; its
			// result says nothing about the stored key, so it is not
			// persisted.
			testCtx = provider.WithAPIKeyOverride(ctx, name, args[2])
			persist = false
		}
		status, err := a.settings.TestSourceKey(testCtx, testable, persist)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", name.DisplayName(), status)
		return nil
	case "status":
		statuses, err := a.settings.KeyStatuses(ctx, a.registry)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			fmt.Printf("%-12s %s\n", st.Name, st.Status)
		}
		return nil
	default:
		return fmt.Errorf("keys: unknown subcommand %q", args[0])
	}
}

// debugLogging drops the configured level to debug for this run. The
// handler swap keeps every logger handed out by newApp valid.
func debugLogging(a *app) {
	lc := a.logs.Config()
	lc.Level = "debug"
	a.logs.Reconfigure(lc)
}

// loadFiles reads tags from each path and adds the tracks to the working set.
func loadFiles(a *app, paths []string) error {
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		if !tagio.IsSupported(abs) {
			return fmt.Errorf("unsupported file type: %s", path)
		}
		tr, err := a.tags.Read(abs)
		if err != nil {
			return err
		}
		if err := a.tracks.Add(tr); err != nil {
			return err
		}
	}
	return nil
}

func printRanked(res *match.RankResult) {
	fmt.Printf("\n%s\n", res.Track.DisplayName())
	for i, r := range res.Ranked {
		marker := " "
		if res.AutoApplied && i == 0 {
			marker = "*"
		}
		fmt.Printf("%s %.3f  %s - %s [%s]\n", marker, r.Score, r.Candidate.Artist, r.Candidate.Title, r.Candidate.Source)
	}
	if len(res.Ranked) == 0 {
		fmt.Println("  no candidates")
	}
}

// buildEncryptor selects the at-rest encryptor for stored API keys. A
// configured passphrase (TID3_PASSPHRASE) derives the key via PBKDF2 with a
// salt persisted beside the database; otherwise a random key is resolved
// through resolveEncryptionKey.
func buildEncryptor(cfg *config.Config, logger *slog.Logger) (*encryption.Encryptor, error) {
	if cfg.Encryption.Passphrase != "" {
		saltFile := filepath.Join(filepath.Dir(cfg.Database.Path), "encryption.salt")
		salt, err := encryption.LoadOrCreateSalt(saltFile)
		if err != nil {
			return nil, err
		}
		logger.Debug("deriving encryption key from passphrase", slog.String("salt_file", saltFile))
		return encryption.FromPassphrase(cfg.Encryption.Passphrase, salt)
	}

	key, err := resolveEncryptionKey(cfg, logger)
	if err != nil {
		return nil, err
	}
	enc, _, err := encryption.NewEncryptor(key)
	return enc, err
}

// resolveEncryptionKey determines the at-rest key for stored API keys.
// Priority: TID3_ENCRYPTION_KEY env var (via config) > key file next to the
// database > generate new.
func resolveEncryptionKey(cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.Encryption.Key != "" {
		return cfg.Encryption.Key, nil
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	keyFile := filepath.Join(dataDir, "encryption.key")

	data, err := os.ReadFile(keyFile) //nolint:gosec // G304: path derived from trusted config
	if err == nil {
		key := strings.TrimSpace(string(data))
		if key != "" {
			logger.Debug("loaded encryption key from file", slog.String("path", keyFile))
			return key, nil
		}
	}

	_, key, err := encryption.NewEncryptor("")
	if err != nil {
		return "", fmt.Errorf("generating encryption key: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		logger.Warn("could not create data directory for encryption key",
			slog.String("path", dataDir), slog.Any("error", err))
		return key, nil
	}
	if err := os.WriteFile(keyFile, []byte(key+"\n"), 0o600); err != nil {
		logger.Warn("could not save encryption key to file",
			slog.String("path", keyFile), slog.Any("error", err))
	} else {
		logger.Warn("generated new encryption key, back up this file",
			slog.String("path", keyFile))
	}

	return key, nil
}
