package config

import (
	"net/url"
	"strings"
	"time"
)

// SiteConfig holds overrides for one host.
type SiteConfig struct {
	// Cookie is sent with page requests to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Mode overrides the detection mode for this host.
	Mode string `yaml:"mode,omitempty"`

	// Keywords are extra keywords applied only to this host.
	Keywords []string `yaml:"keywords,omitempty"`

	// Render loads this host through headless Chrome.
	Render bool `yaml:"render,omitempty"`

	// Skip excludes this host from scanning, like a skip domain.
	Skip bool `yaml:"skip,omitempty"`

	// WidthRatio overrides the selector's over-wide threshold.
	WidthRatio float64 `yaml:"widthRatio,omitempty"`
}

// ClassifierConfig is the classifier section of the configuration file.
type ClassifierConfig struct {
	Endpoint  string        `yaml:"endpoint,omitempty"`
	Username  string        `yaml:"username,omitempty"`
	Password  string        `yaml:"password,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	BatchSize int           `yaml:"batchSize,omitempty"`
	Delay     time.Duration `yaml:"delay,omitempty"`
	MaxChunks int           `yaml:"maxChunks,omitempty"`
}

// File represents the structure of the .spoilerguard configuration file.
type File struct {
	// Keywords are added to the persisted keyword list on every run.
	Keywords []string `yaml:"keywords,omitempty"`

	// SkipDomains replaces the built-in skip list when set.
	SkipDomains []string `yaml:"skipDomains,omitempty"`

	// Classifier configures the remote classifier.
	Classifier ClassifierConfig `yaml:"classifier,omitempty"`

	// Sites maps host names to their overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for target merged over the
// defaults. target may be a host name or a full URL; "www." is ignored
// when looking up hosts.
func (cf *File) GetSiteConfig(target string) SiteConfig {
	result := cf.Defaults
	if result.Headers != nil {
		headers := make(map[string]string, len(result.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	site, ok := cf.lookup(target)
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	if site.Mode != "" {
		result.Mode = site.Mode
	}
	if len(site.Keywords) > 0 {
		result.Keywords = append(append([]string(nil), result.Keywords...), site.Keywords...)
	}
	if site.Render {
		result.Render = true
	}
	if site.Skip {
		result.Skip = true
	}
	if site.WidthRatio > 0 {
		result.WidthRatio = site.WidthRatio
	}
	return result
}

func (cf *File) lookup(target string) (SiteConfig, bool) {
	if site, ok := cf.Sites[target]; ok {
		return site, true
	}
	host := HostOf(target)
	if site, ok := cf.Sites[host]; ok {
		return site, true
	}
	if site, ok := cf.Sites[strings.TrimPrefix(host, "www.")]; ok {
		return site, true
	}
	return SiteConfig{}, false
}

// HostOf returns the lower-cased host of target, which may be a URL or a
// bare host name.
func HostOf(target string) string {
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil {
			return strings.ToLower(u.Hostname())
		}
	}
	host, _, _ := strings.Cut(target, "/")
	return strings.ToLower(host)
}
