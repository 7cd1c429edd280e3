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

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"spellbee/internal/breaker"
	"spellbee/internal/judge"
	"spellbee/internal/logging"
	"spellbee/internal/speech"
	"spellbee/internal/wordbank"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries flag values and the resolved configuration between commands.
type cli struct {
	cfgFile  string
	port     string
	logLevel string

	cfg *Config
	log *zap.SugaredLogger
}

// newRootCommand builds the command tree. Running the root command starts
// the web server.
func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "spellbee",
		Short: "Spelling bee practice server",
		Long: `spellbee serves a spelling bee drill: paste a list of words, listen to
each one, spell it out loud and get feedback from a speech model.

Examples:
  spellbee                              # serve on :8080
  spellbee --port 9000 --log-level debug
  spellbee pronounce atmosphere -o atmosphere.mp3
  spellbee presets`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), c.cfg, c.log)
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is ./spellbee.yaml or $HOME/spellbee.yaml)")
	root.PersistentFlags().StringVar(&c.port, "port", "", "HTTP port (overrides server.port)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newPronounceCommand(c), newPresetsCommand(c))
	return root
}

// setup loads .env, resolves configuration and builds the logger.
func (c *cli) setup(cmd *cobra.Command) error {
	_ = godotenv.Load()

	v, err := newViper(c.cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Root().PersistentFlags()); err != nil {
		return err
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	setLogger(log)
	if used := v.ConfigFileUsed(); used != "" {
		logInfo("Using config file: %s", used)
	}
	c.cfg, c.log = cfg, log
	return nil
}

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"port":      "server.port",
	"log-level": "log.level",
}

// bindFlags lets explicitly set flags take precedence over file and env
// values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// serve builds the application and runs the HTTP server until SIGINT/SIGTERM.
func serve(ctx context.Context, cfg *Config, log *zap.SugaredLogger) error {
	defer func() { _ = log.Sync() }()
	logInfo("Starting spellbee %s in %s mode", version, cfg.envName())

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.runSweeper(ctx, cfg.SweepInterval)
	return app.startServer(ctx, app.newRouter())
}

// newApp wires the collaborators. A missing judge credential is fatal here,
// before the listener opens.
func newApp(ctx context.Context, cfg *Config, log *zap.SugaredLogger) (*App, error) {
	presets := loadPresets(cfg.WordlistsFile)

	speechBreaker := newBreaker("speech", cfg, log)
	judgeBreaker := newBreaker("judge", cfg, log)

	pronouncer, err := buildPronouncer(ctx, cfg, log, speechBreaker)
	if err != nil {
		return nil, fmt.Errorf("pronouncer: %w", err)
	}
	if err := pronouncer.IsAvailable(); err != nil {
		logWarn("Pronouncer %s is not available yet: %v", pronouncer.Name(), err)
	}

	evaluator, err := judge.New(ctx, judge.Config{
		Provider:        cfg.Judge.Provider,
		Model:           judgeModel(cfg),
		TranscribeModel: cfg.Judge.TranscribeModel,
		Timeout:         cfg.Judge.Timeout,
		GeminiKey:       cfg.GeminiKey,
		OpenAIKey:       cfg.OpenAIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}
	logInfo("Using pronouncer %q and evaluator %q", pronouncer.Name(), evaluator.Name())

	return &App{
		Config:     cfg,
		Log:        log,
		Pronouncer: pronouncer,
		Evaluator:  judge.NewGuarded(evaluator, judgeBreaker),
		Presets:    presets,
		Breakers:   []*breaker.Breaker{speechBreaker, judgeBreaker},
		Sessions:   make(map[string]*sessionEntry),
		LimiterMap: make(map[string]*rate.Limiter),
		StartTime:  time.Now(),
	}, nil
}

func loadPresets(path string) *wordbank.Bank {
	if path == "" {
		return wordbank.Empty()
	}
	bank, err := wordbank.Load(path)
	if err != nil {
		logWarn("No preset word lists loaded: %v", err)
		return wordbank.Empty()
	}
	logInfo("Loaded %d preset word list%s from %s", bank.Len(), plural(bank.Len()), path)
	return bank
}

func newBreaker(name string, cfg *Config, log *zap.SugaredLogger) *breaker.Breaker {
	return breaker.New(breaker.Settings{
		Name:         name,
		MaxFailures:  cfg.Breaker.MaxFailures,
		OpenTimeout:  cfg.Breaker.OpenTimeout,
		IsSuccessful: badInput,
	}, log)
}

// badInput reports errors caused by the request rather than the provider.
func badInput(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, judge.ErrEmptyClip) ||
		errors.Is(err, judge.ErrEmptyTarget) ||
		errors.Is(err, speech.ErrEmptyWord)
}

func judgeModel(cfg *Config) string {
	if cfg.Judge.Provider == judge.ProviderOpenAI {
		return cfg.Judge.OpenAIModel
	}
	return cfg.Judge.GeminiModel
}

// speechConfig returns the provider settings for name. The configured voice
// and instructions only apply to the primary provider.
func speechConfig(cfg *Config, name string, primary bool) speech.Config {
	sc := speech.Config{
		Provider:  name,
		Speed:     cfg.Speech.Speed,
		Timeout:   cfg.Speech.Timeout,
		OpenAIKey: cfg.OpenAIKey,
		GeminiKey: cfg.GeminiKey,
	}
	switch name {
	case speech.ProviderOpenAI:
		sc.Model = cfg.Speech.OpenAIModel
	case speech.ProviderGemini:
		sc.Model = cfg.Speech.GeminiModel
	}
	if primary {
		sc.Voice = cfg.Speech.Voice
		sc.Instructions = cfg.Speech.Instructions
	}
	return sc
}

// buildPronouncer assembles primary -> breaker -> fallback -> cache tiers.
func buildPronouncer(ctx context.Context, cfg *Config, log *zap.SugaredLogger, b *breaker.Breaker) (speech.Pronouncer, error) {
	primary, err := speech.New(ctx, speechConfig(cfg, cfg.Speech.Provider, true), log)
	if err != nil {
		return nil, err
	}
	var p speech.Pronouncer = primary
	if cfg.Speech.Provider != speech.ProviderESpeak {
		p = speech.NewGuarded(primary, b)
	}

	if fb := cfg.Speech.Fallback; fb != "" && fb != "none" && fb != cfg.Speech.Provider {
		fallback, err := speech.New(ctx, speechConfig(cfg, fb, false), log)
		if err != nil {
			logWarn("Fallback pronouncer %q disabled: %v", fb, err)
		} else {
			p = speech.WithFallback(p, fallback, log)
		}
	}

	stores := cacheStores(cfg)
	if len(stores) == 0 {
		return p, nil
	}
	return speech.NewCached(p, log, stores...), nil
}

// cacheStores builds the configured cache tiers, fastest first.
func cacheStores(cfg *Config) []speech.Store {
	var stores []speech.Store
	if cfg.Speech.MemoryEntries > 0 {
		stores = append(stores, speech.NewMemoryStore(cfg.Speech.MemoryEntries))
	}
	if cfg.Speech.CacheDir != "" {
		disk, err := speech.NewDiskStore(cfg.Speech.CacheDir, cfg.Speech.DiskWrite)
		if err != nil {
			logWarn("Disk pronunciation cache disabled: %v", err)
		} else {
			stores = append(stores, disk)
		}
	}
	if cfg.Speech.S3Endpoint != "" {
		s3, err := speech.NewS3Store(speech.S3Config{
			Endpoint:  cfg.Speech.S3Endpoint,
			AccessKey: cfg.Speech.S3AccessKey,
			SecretKey: cfg.Speech.S3SecretKey,
			Bucket:    cfg.Speech.S3Bucket,
			Region:    cfg.Speech.S3Region,
			Secure:    cfg.Speech.S3Secure,
		})
		if err != nil {
			logWarn("S3 pronunciation cache disabled: %v", err)
		} else {
			stores = append(stores, s3)
		}
	}
	return stores
}

// newRouter builds the gin engine with middleware, templates and routes.
func (app *App) newRouter() *gin.Engine {
	if app.Config.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware(), app.requestLogMiddleware())

	// Audio is already compressed.
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif", ".mp3", ".wav"}),
		ginGzip.WithExcludedPaths([]string{RoutePronounce, "/static/fonts"})))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logWarn("Failed to set trusted proxies: %v", err)
	}
	router.Use(app.cacheHeadersMiddleware())

	if app.Config.Production && dirExists("dist") {
		logInfo("Serving assets from dist/ directory")
		router.LoadHTMLGlob("dist/templates/*.html")
		router.Static("/static", "./dist/static")
	} else {
		logInfo("Serving development assets from source directories")
		router.LoadHTMLGlob("templates/*.html")
		router.Static("/static", "./static")
	}

	limited := app.rateLimitMiddleware()
	router.GET(RouteHome, app.homeHandler)
	router.POST(RouteStart, limited, app.startHandler)
	router.GET(RoutePronounce, limited, app.pronounceHandler)
	router.POST(RouteAttempt, limited, app.attemptHandler)
	router.POST(RouteNext, limited, app.nextHandler)
	router.POST(RouteRestart, limited, app.restartHandler)
	router.GET(RouteState, app.stateHandler)
	router.GET(RouteHealthz, app.healthzHandler)
	return router
}

// startServer runs the HTTP server and shuts it down gracefully once ctx is
// cancelled.
func (app *App) startServer(ctx context.Context, router *gin.Engine) error {
	srv := &http.Server{
		Addr:              ":" + app.Config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Evaluations can take a while on a slow upstream.
		WriteTimeout: app.Config.Judge.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		logInfo("Shutdown signal received, shutting down server gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	logInfo("Server starting on http://localhost:%s", app.Config.Port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	<-idleConnsClosed
	logInfo("Server shutdown complete")
	return nil
}
