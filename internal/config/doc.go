// Package config provides configuration structures and utilities for
// spoilerguard: CLI defaults, validation, XDG directories and the
// .spoilerguard YAML file with per-site overrides.
package config
