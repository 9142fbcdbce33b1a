package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/nao1215/spoilerguard/internal/classifier"
	"github.com/nao1215/spoilerguard/internal/config"
	"github.com/nao1215/spoilerguard/internal/engine"
	"github.com/nao1215/spoilerguard/internal/fetch"
	"github.com/nao1215/spoilerguard/internal/keyword"
	"github.com/nao1215/spoilerguard/internal/layout"
	applog "github.com/nao1215/spoilerguard/internal/log"
	"github.com/nao1215/spoilerguard/internal/metrics"
	"github.com/nao1215/spoilerguard/internal/model"
	"github.com/nao1215/spoilerguard/internal/source"
	"github.com/nao1215/spoilerguard/internal/store"
	"github.com/spf13/cobra"
)

// loadConfig builds a Config from the global flags and the configuration
// file. Command specific flags are applied afterwards with override so
// that only flags the user set win over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	cfg.Verbose = boolFlag(cmd, "verbose")
	cfg.ConfigFilePath = stringFlag(cmd, "config", "")
	cfg.DBDir = stringFlag(cmd, "db-dir", cfg.DBDir)
	cfg.LogFormat = stringFlag(cmd, "log-format", cfg.LogFormat)

	// An explicit path must exist; otherwise a missing file means no file.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		f, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(f)
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}
	return cfg, nil
}

// override copies flag name into dst when the user set it.
func override[T any](cmd *cobra.Command, name string, dst *T, get func(string) (T, error)) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// boolFlag reads a flag that may live on the root command. Commands built
// on their own in tests do not carry the root's persistent flags.
func boolFlag(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String() == "true"
	}
	if f := cmd.Root().PersistentFlags().Lookup(name); f != nil {
		return f.Value.String() == "true"
	}
	return false
}

func stringFlag(cmd *cobra.Command, name, def string) string {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	if f := cmd.Root().PersistentFlags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return def
}

// app holds what every command needs once the configuration is known.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *store.DB
	broker *store.Broker
	cache  *classifier.Cache
	client classifier.Classifier
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := applog.New(os.Stderr, cfg.LogFormat, cfg.Verbose)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	db, err := store.Open(cfg.DBDir, store.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", db.Path())

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		broker: store.NewBroker(db, logger),
		cache:  classifier.NewCache(db, logger),
	}
	if cfg.ClassifierEndpoint != "" {
		opts := []classifier.ClientOption{
			classifier.WithUserAgent(cfg.UserAgent),
			classifier.WithHTTPClient(&http.Client{Timeout: cfg.ClassifierTimeout}),
		}
		if cfg.ClassifierUsername != "" {
			opts = append(opts, classifier.WithBasicAuth(cfg.ClassifierUsername, cfg.ClassifierPassword))
		}
		a.client = classifier.NewClient(cfg.ClassifierEndpoint, opts...)
		logger.Debug("classifier enabled",
			"endpoint", cfg.ClassifierEndpoint,
			"basic_auth", cfg.ClassifierUsername != "",
		)
	}
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// send runs one keyword store request through the broker.
func (a *app) send(ctx context.Context, req store.Request) (store.Response, error) {
	resp, err := a.broker.Send(ctx, req)
	if err != nil {
		return resp, fmt.Errorf("%s: %w", req.Action, err)
	}
	return resp, nil
}

func (a *app) site(target string) config.SiteConfig {
	if a.cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}
	return a.cfg.SiteConfigs.GetSiteConfig(target)
}

// Load implements fetch.Loader, picking the loader each target's site
// configuration asks for.
func (a *app) Load(ctx context.Context, target string) (*fetch.Page, error) {
	return a.loaderFor(a.site(target)).Load(ctx, target)
}

func (a *app) loaderFor(site config.SiteConfig) fetch.Loader {
	if a.cfg.Render || site.Render {
		return fetch.NewRenderer(
			fetch.WithRenderTimeout(a.cfg.Timeout),
			fetch.WithExecPath(a.cfg.ChromePath),
			fetch.WithRendererUserAgent(a.cfg.UserAgent),
			fetch.WithRendererLogger(a.logger),
		)
	}
	return fetch.NewFetcher(
		fetch.WithTimeout(a.cfg.Timeout),
		fetch.WithUserAgent(a.cfg.UserAgent),
		fetch.WithMaxBodySize(a.cfg.MaxBodySize),
		fetch.WithCookie(site.Cookie),
		fetch.WithHeaders(site.Headers),
	)
}

// skipDomains returns the configured skip list plus every site marked skip.
func (a *app) skipDomains() []string {
	base := a.cfg.SkipDomains
	if base == nil {
		base = engine.DefaultSkipDomains
	}
	out := append([]string(nil), base...)
	if a.cfg.SiteConfigs != nil {
		for host, site := range a.cfg.SiteConfigs.Sites {
			if site.Skip {
				out = append(out, config.HostOf(host))
			}
		}
	}
	return out
}

func (a *app) engineOptions(site config.SiteConfig, m *metrics.Metrics) engine.Options {
	matcherOpts := []keyword.Option{keyword.WithLogger(a.logger)}
	if a.cfg.Fuzzy {
		matcherOpts = append(matcherOpts, keyword.WithFuzzy(a.cfg.FuzzyThreshold))
	}
	if a.cfg.Plurals {
		matcherOpts = append(matcherOpts, keyword.WithPluralSuffixes())
	}

	return engine.Options{
		Matcher:    keyword.NewMatcher(matcherOpts...),
		Oracle:     layout.NewStatic(a.cfg.ViewportWidth),
		WidthRatio: site.WidthRatio,
		Classifier: a.client,
		Cache:      a.cache,
		Batch: classifier.BatchOptions{
			Size:    a.cfg.ClassifierBatchSize,
			Delay:   a.cfg.ClassifierDelay,
			Timeout: a.cfg.ClassifierTimeout,
			Logger:  a.logger,
		},
		MaxChunks:   a.cfg.MaxChunks,
		SkipDomains: a.skipDomains(),
		Metrics:     m,
		Logger:      a.logger,
	}
}

// siteMode returns the mode override for site: the --mode flag first, then
// the site configuration. Empty means the persisted mode.
func (a *app) siteMode(site config.SiteConfig) model.DetectionMode {
	if a.cfg.Mode != "" {
		return a.cfg.Mode
	}
	if site.Mode != "" {
		if mode, err := model.ParseDetectionMode(site.Mode); err == nil {
			return mode
		}
	}
	return ""
}

// overlay layers run-only keywords and a mode override over the persisted
// store. With readOnly set, writes are acknowledged but dropped so that a
// one-off scan never touches the ignore list or mode of the reading proxy.
type overlay struct {
	next     source.Messenger
	keywords []string
	mode     model.DetectionMode
	readOnly bool
}

var _ source.Messenger = (*overlay)(nil)

func (o *overlay) Send(ctx context.Context, req store.Request) (store.Response, error) {
	if o.readOnly && isWrite(req.Action) {
		return store.Response{Success: true}, nil
	}
	resp, err := o.next.Send(ctx, req)
	if err != nil {
		return resp, err
	}
	switch req.Action {
	case store.ActionGetKeywords:
		resp.Keywords = append(resp.Keywords, o.keywords...)
	case store.ActionGetDetectionMode:
		if o.mode != "" {
			resp.DetectionMode = o.mode.String()
		}
	}
	return resp, nil
}

func isWrite(action string) bool {
	switch action {
	case store.ActionAddKeywords, store.ActionRemoveKeyword, store.ActionSetKeywords,
		store.ActionSetIgnoredKeywords, store.ActionClearIgnoredKeywords, store.ActionSetDetectionMode:
		return true
	default:
		return false
	}
}

// errScansFailed is returned when at least one target could not be scanned.
var errScansFailed = errors.New("some scans failed")
