package cfg

import "time"

type Cfg struct {
	// Host page
	BaseURL       string
	StartPath     string
	SessionCookie string
	UserAgent     string
	Profile       string

	// Application configuration
	Port           string
	APIAccessKey   string
	ReloadInterval time.Duration

	// Application metadata
	Debug   bool
	Version string
}
