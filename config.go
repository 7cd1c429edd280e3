package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Port       string
	Production bool

	SessionTimeout time.Duration
	CookieMaxAge   time.Duration
	SweepInterval  time.Duration
	StaticCacheAge time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	LogLevel  string
	LogFormat string

	Speech  SpeechSettings
	Judge   JudgeSettings
	Breaker BreakerSettings

	WordlistsFile string
	UI            UISettings

	GeminiKey string
	OpenAIKey string
}

// SpeechSettings configure the pronouncer chain.
type SpeechSettings struct {
	Provider     string
	Fallback     string
	Voice        string
	OpenAIModel  string
	GeminiModel  string
	Speed        float64
	Instructions string
	Timeout      time.Duration

	MemoryEntries int
	CacheDir      string
	DiskWrite     bool

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3Secure    bool
}

// JudgeSettings configure the evaluator.
type JudgeSettings struct {
	Provider        string
	GeminiModel     string
	OpenAIModel     string
	TranscribeModel string
	Timeout         time.Duration
}

// BreakerSettings configure the circuit breakers around remote providers.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// UISettings hold the branding strings shown on every page.
type UISettings struct {
	Title    string
	Subtitle string
	Footer   string
}

const envPrefix = "SPELLBEE"

// setDefaults registers every key with its default value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.production", false)

	v.SetDefault("session.timeout", 2*time.Hour)
	v.SetDefault("session.cookie_max_age", 2*time.Hour)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("static.cache_age", 5*time.Minute)

	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("speech.provider", "gemini")
	v.SetDefault("speech.fallback", "espeak")
	v.SetDefault("speech.voice", "")
	v.SetDefault("speech.openai_model", "gpt-4o-mini-tts")
	v.SetDefault("speech.gemini_model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("speech.speed", 1.0)
	v.SetDefault("speech.instructions", "")
	v.SetDefault("speech.timeout", 20*time.Second)
	v.SetDefault("speech.cache.memory_entries", 512)
	v.SetDefault("speech.cache.dir", "")
	v.SetDefault("speech.cache.disk_write", true)
	v.SetDefault("speech.cache.s3.endpoint", "")
	v.SetDefault("speech.cache.s3.access_key", "")
	v.SetDefault("speech.cache.s3.secret_key", "")
	v.SetDefault("speech.cache.s3.bucket", "spellbee")
	v.SetDefault("speech.cache.s3.region", "")
	v.SetDefault("speech.cache.s3.secure", true)

	v.SetDefault("judge.provider", "gemini")
	v.SetDefault("judge.gemini_model", "gemini-2.5-flash")
	v.SetDefault("judge.openai_model", "gpt-4o-mini")
	v.SetDefault("judge.transcribe_model", "whisper-1")
	v.SetDefault("judge.timeout", 30*time.Second)

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", 30*time.Second)

	v.SetDefault("wordlists.file", "data/wordlists.toml")

	v.SetDefault("ui.title", "Spelling Bee Practice")
	v.SetDefault("ui.subtitle", "Listen to the word, then spell it out loud letter by letter.")
	v.SetDefault("ui.footer", "")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("openai.api_key", "")
}

// newViper builds a viper instance with defaults, the optional config file
// and SPELLBEE_* environment overrides (e.g. SPELLBEE_SPEECH_PROVIDER).
func newViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("spellbee")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional variable names used by hosting platforms and the SDKs.
	_ = v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("gemini.api_key", envPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("openai.api_key", envPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// loadConfig resolves a Config from v.
func loadConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:       v.GetString("server.port"),
		Production: v.GetBool("server.production") || os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production",

		SessionTimeout: v.GetDuration("session.timeout"),
		CookieMaxAge:   v.GetDuration("session.cookie_max_age"),
		SweepInterval:  v.GetDuration("session.sweep_interval"),
		StaticCacheAge: v.GetDuration("static.cache_age"),

		RateLimitRPS:   v.GetInt("ratelimit.rps"),
		RateLimitBurst: v.GetInt("ratelimit.burst"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),

		Speech: SpeechSettings{
			Provider:      strings.ToLower(v.GetString("speech.provider")),
			Fallback:      strings.ToLower(v.GetString("speech.fallback")),
			Voice:         v.GetString("speech.voice"),
			OpenAIModel:   v.GetString("speech.openai_model"),
			GeminiModel:   v.GetString("speech.gemini_model"),
			Speed:         v.GetFloat64("speech.speed"),
			Instructions:  v.GetString("speech.instructions"),
			Timeout:       v.GetDuration("speech.timeout"),
			MemoryEntries: v.GetInt("speech.cache.memory_entries"),
			CacheDir:      v.GetString("speech.cache.dir"),
			DiskWrite:     v.GetBool("speech.cache.disk_write"),
			S3Endpoint:    v.GetString("speech.cache.s3.endpoint"),
			S3AccessKey:   v.GetString("speech.cache.s3.access_key"),
			S3SecretKey:   v.GetString("speech.cache.s3.secret_key"),
			S3Bucket:      v.GetString("speech.cache.s3.bucket"),
			S3Region:      v.GetString("speech.cache.s3.region"),
			S3Secure:      v.GetBool("speech.cache.s3.secure"),
		},
		Judge: JudgeSettings{
			Provider:        strings.ToLower(v.GetString("judge.provider")),
			GeminiModel:     v.GetString("judge.gemini_model"),
			OpenAIModel:     v.GetString("judge.openai_model"),
			TranscribeModel: v.GetString("judge.transcribe_model"),
			Timeout:         v.GetDuration("judge.timeout"),
		},
		Breaker: BreakerSettings{
			MaxFailures: v.GetUint32("breaker.max_failures"),
			OpenTimeout: v.GetDuration("breaker.open_timeout"),
		},

		WordlistsFile: v.GetString("wordlists.file"),
		UI: UISettings{
			Title:    v.GetString("ui.title"),
			Subtitle: v.GetString("ui.subtitle"),
			Footer:   v.GetString("ui.footer"),
		},

		GeminiKey: strings.TrimSpace(v.GetString("gemini.api_key")),
		OpenAIKey: strings.TrimSpace(v.GetString("openai.api_key")),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects values that would make the server misbehave.
func (c *Config) validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("server.port must be set"))
	}
	if c.SessionTimeout <= 0 {
		errs = append(errs, errors.New("session.timeout must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("ratelimit.rps and ratelimit.burst must be positive"))
	}
	if !oneOf(c.Speech.Provider, "openai", "gemini", "espeak") {
		errs = append(errs, fmt.Errorf("speech.provider %q is not one of openai, gemini, espeak", c.Speech.Provider))
	}
	if c.Speech.Fallback != "" && c.Speech.Fallback != "none" && !oneOf(c.Speech.Fallback, "openai", "gemini", "espeak") {
		errs = append(errs, fmt.Errorf("speech.fallback %q is not one of openai, gemini, espeak, none", c.Speech.Fallback))
	}
	if c.Speech.Speed < 0.25 || c.Speech.Speed > 4.0 {
		errs = append(errs, fmt.Errorf("speech.speed %.2f is outside 0.25..4.0", c.Speech.Speed))
	}
	if !oneOf(c.Judge.Provider, "openai", "gemini") {
		errs = append(errs, fmt.Errorf("judge.provider %q is not one of openai, gemini", c.Judge.Provider))
	}
	return errors.Join(errs...)
}

// envName returns "production" or "development".
func (c *Config) envName() string {
	if c.Production {
		return "production"
	}
	return "development"
}

func oneOf(s string, options ...string) bool {
	return lo.Contains(options, s)
}
