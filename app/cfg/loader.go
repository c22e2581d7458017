package cfg

import (
	"cmp"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// EnvFiles are loaded in order before flags are parsed. Variables already set in
// the environment are never overwritten.
var EnvFiles = []string{".env", ".env.local"}

type rawCfg struct {
	// Host page
	BaseURL       string `long:"base-url" env:"BASE_URL" description:"Origin of the bookmark app (e.g., https://bookmarks.example.com)" required:"true"`
	StartPath     string `long:"start-path" env:"START_PATH" default:"/dashboard" description:"Page loaded into the live tab at startup"`
	SessionCookie string `long:"session-cookie" env:"SESSION_COOKIE" description:"Session cookie sent with every request (name=value)"`
	UserAgent     string `long:"user-agent" env:"USER_AGENT" default:"Badge Comb/1.0" description:"User agent string for HTTP requests"`
	Profile       string `long:"profile" env:"PROFILE" description:"YAML file overriding the built-in page profile"`

	// Application configuration
	Port           string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey   string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	ReloadInterval int    `long:"reload-interval" env:"RELOAD_INTERVAL" default:"60" description:"Seconds between live page reloads (0 disables)"`

	// Application metadata
	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args on top of the environment. It returns nil without an
// error when help was requested.
func LoadArgs(args []string) (*Cfg, error) {
	for _, f := range EnvFiles {
		_ = godotenv.Load(f)
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	cfg := &Cfg{
		BaseURL:        strings.TrimRight(raw.BaseURL, "/"),
		StartPath:      raw.StartPath,
		SessionCookie:  raw.SessionCookie,
		UserAgent:      raw.UserAgent,
		Profile:        raw.Profile,
		Port:           raw.Port,
		APIAccessKey:   raw.APIAccessKey,
		ReloadInterval: time.Duration(raw.ReloadInterval) * time.Second,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(raw *rawCfg) error {
	u, err := url.Parse(raw.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base URL %q: must be an absolute http(s) URL", raw.BaseURL)
	}
	if !strings.HasPrefix(raw.StartPath, "/") {
		return fmt.Errorf("invalid start path %q: must begin with /", raw.StartPath)
	}
	if raw.ReloadInterval < 0 {
		return fmt.Errorf("invalid reload interval %d: must not be negative", raw.ReloadInterval)
	}
	return nil
}
