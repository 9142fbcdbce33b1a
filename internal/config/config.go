package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/spoilerguard/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "spoilerguard"

	// DefaultTimeout bounds loading one page. Rendered pages run scripts,
	// so this is generous.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of pages scanned concurrently.
	DefaultBatchSize = 4

	// DefaultClassifierTimeout bounds a single classifier request.
	DefaultClassifierTimeout = 10 * time.Second

	// DefaultClassifierBatchSize is the number of chunks per classifier request.
	DefaultClassifierBatchSize = 20

	// DefaultClassifierDelay is the pause between classifier requests.
	DefaultClassifierDelay = 300 * time.Millisecond

	// DefaultFuzzyThreshold is the similarity needed for a fuzzy keyword hit.
	DefaultFuzzyThreshold = 0.8

	// DefaultViewportWidth is the viewport assumed by the static layout model.
	DefaultViewportWidth = 1280.0

	// DefaultListenAddress is where "serve" listens.
	DefaultListenAddress = "127.0.0.1:8765"

	// DefaultUserAgent identifies spoilerguard in HTTP requests.
	DefaultUserAgent = "spoilerguard/1.0 (+https://github.com/nao1215/spoilerguard)"

	// DefaultMaxBodySize limits the response body read for one page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Config holds all configuration options for spoilerguard.
// It is populated from CLI flags and the configuration file and passed
// down explicitly rather than kept in global state.
type Config struct {
	// Targets are the URLs or local HTML files to scan.
	Targets []string

	// Timeout bounds loading a single page.
	Timeout time.Duration

	// BatchSize is the number of pages scanned concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat selects the log encoding: "text" or "json".
	LogFormat string

	// ConfigFilePath is the path to the configuration file.
	// If empty, .spoilerguard is searched in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds the parsed configuration file.
	SiteConfigs *File

	// JSONReport selects JSON report output. Mutually exclusive with
	// MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output.
	MarkdownReport bool

	// ReportFile is where reports are written. Empty means stdout.
	ReportFile string

	// OutputHTML is a directory that receives the redacted markup of each
	// scanned page. Empty disables it.
	OutputHTML string

	// DBDir holds the SQLite database with keywords, settings and the
	// classifier verdict cache. Defaults to the XDG data directory.
	DBDir string

	// Mode overrides the persisted detection mode for this run.
	// The zero value keeps the persisted mode.
	Mode model.DetectionMode

	// Keywords are added to the persisted list for this run only.
	Keywords []string

	// ClassifierEndpoint is the URL of the remote spoiler classifier.
	// Empty disables the classifier.
	ClassifierEndpoint string

	// ClassifierUsername and ClassifierPassword enable HTTP basic auth
	// against the classifier.
	ClassifierUsername string
	ClassifierPassword string

	// ClassifierTimeout bounds a single classifier request.
	ClassifierTimeout time.Duration

	// ClassifierBatchSize is the number of chunks per classifier request.
	ClassifierBatchSize int

	// ClassifierDelay is the pause between classifier requests.
	ClassifierDelay time.Duration

	// MaxChunks caps the chunks sent to the classifier per pass.
	// Zero means no cap.
	MaxChunks int

	// Fuzzy enables approximate keyword matching.
	Fuzzy bool

	// FuzzyThreshold is the similarity needed for a fuzzy hit.
	FuzzyThreshold float64

	// Plurals lets keywords match simple plural forms.
	Plurals bool

	// ViewportWidth is the viewport assumed by the static layout model.
	ViewportWidth float64

	// SkipDomains replaces the built-in skip list when non-nil.
	SkipDomains []string

	// Render loads pages through headless Chrome instead of plain HTTP.
	Render bool

	// ChromePath is the Chrome executable used when Render is set.
	// Empty lets chromedp find one.
	ChromePath string

	// UserAgent is sent with every page request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// ListenAddress is the address "serve" binds.
	ListenAddress string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:             DefaultTimeout,
		BatchSize:           DefaultBatchSize,
		LogFormat:           "text",
		ClassifierTimeout:   DefaultClassifierTimeout,
		ClassifierBatchSize: DefaultClassifierBatchSize,
		ClassifierDelay:     DefaultClassifierDelay,
		FuzzyThreshold:      DefaultFuzzyThreshold,
		ViewportWidth:       DefaultViewportWidth,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		ListenAddress:       DefaultListenAddress,
		DBDir:               XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for spoilerguard.
// On Linux: ~/.local/share/spoilerguard
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for spoilerguard.
// On Linux: ~/.config/spoilerguard
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for spoilerguard.
// On Linux: ~/.cache/spoilerguard
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// ApplyFile copies global settings from the configuration file into c.
// Values already set to something other than their default win, so CLI
// flags keep precedence over the file.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.SiteConfigs = f

	cl := f.Classifier
	if c.ClassifierEndpoint == "" {
		c.ClassifierEndpoint = cl.Endpoint
	}
	if c.ClassifierUsername == "" {
		c.ClassifierUsername = cl.Username
	}
	if c.ClassifierPassword == "" {
		c.ClassifierPassword = cl.Password
	}
	if c.ClassifierTimeout == DefaultClassifierTimeout && cl.Timeout > 0 {
		c.ClassifierTimeout = cl.Timeout
	}
	if c.ClassifierBatchSize == DefaultClassifierBatchSize && cl.BatchSize > 0 {
		c.ClassifierBatchSize = cl.BatchSize
	}
	if c.ClassifierDelay == DefaultClassifierDelay && cl.Delay != 0 {
		c.ClassifierDelay = cl.Delay
	}
	if c.MaxChunks == 0 {
		c.MaxChunks = cl.MaxChunks
	}
	if c.SkipDomains == nil && f.SkipDomains != nil {
		c.SkipDomains = f.SkipDomains
	}
	c.Keywords = append(c.Keywords, f.Keywords...)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return c.validateCommon()
}

// ValidateServe checks the settings used by the proxy server, which runs
// without targets.
func (c *Config) ValidateServe() error {
	if c.ListenAddress == "" {
		return ErrNoListenAddress
	}
	return c.validateCommon()
}

func (c *Config) validateCommon() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Mode != "" && !c.Mode.IsValid() {
		return model.ErrInvalidDetectionMode
	}
	if c.Fuzzy && (c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1) {
		return ErrInvalidFuzzyThreshold
	}
	if c.ClassifierBatchSize <= 0 {
		return ErrInvalidClassifierBatchSize
	}
	if c.ClassifierTimeout <= 0 {
		return ErrInvalidClassifierTimeout
	}
	if c.MaxChunks < 0 {
		return ErrInvalidMaxChunks
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return ErrInvalidLogFormat
	}
	return nil
}
