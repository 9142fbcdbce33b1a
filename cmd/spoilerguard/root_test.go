package main

import (
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "spoilerguard" {
			t.Errorf("expected use 'spoilerguard', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty short and long descriptions")
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name      string
			shorthand string
		}{
			{"verbose", "v"},
			{"config", "c"},
			{"db-dir", ""},
			{"log-format", ""},
		}
		for _, tt := range tests {
			flag := cmd.PersistentFlags().Lookup(tt.name)
			if flag == nil {
				t.Errorf("expected %s flag", tt.name)
				continue
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("%s: expected shorthand %q, got %q", tt.name, tt.shorthand, flag.Shorthand)
			}
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := []string{"scan", "serve", "keywords", "ignored", "mode", "cache", "init", "version"}
		for _, name := range want {
			sub, _, err := cmd.Find([]string{name})
			if err != nil || sub == cmd {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})
}

func TestStoreSubcommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		parent string
		subs   []string
	}{
		{"keywords", []string{"list", "add", "remove", "clear"}},
		{"ignored", []string{"list", "clear"}},
		{"mode", []string{"get", "set"}},
		{"cache", []string{"stats", "prune"}},
	}
	for _, tt := range tests {
		t.Run(tt.parent, func(t *testing.T) {
			t.Parallel()
			cmd := NewRootCmd()
			for _, sub := range tt.subs {
				found, _, err := cmd.Find([]string{tt.parent, sub})
				if err != nil {
					t.Fatalf("Find(%s %s) error: %v", tt.parent, sub, err)
				}
				if found.Name() != sub {
					t.Errorf("expected %s %s, got %s", tt.parent, sub, found.Name())
				}
			}
		})
	}
}
