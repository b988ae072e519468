package config

import (
	"testing"

	"github.com/xplshn/gpl0/pkg/cli"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	if !cfg.IsFeatureEnabled(FeatFold) || cfg.IsFeatureEnabled(FeatConstCheck) || cfg.IsFeatureEnabled(FeatParallel) {
		t.Errorf("unexpected feature defaults: %+v", cfg.Features)
	}
	if cfg.IsWarningEnabled(WarnUnused) || !cfg.IsWarningEnabled(WarnShadow) {
		t.Errorf("unexpected warning defaults: %+v", cfg.Warnings)
	}
	if cfg.Jobs < 1 || cfg.Logger == nil {
		t.Errorf("jobs = %d, logger = %v", cfg.Jobs, cfg.Logger)
	}
	if got := cfg.WarningName(WarnUnreachableCode); got != "unreachable-code" {
		t.Errorf("WarningName = %q", got)
	}
}

func TestProcessFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		check func(*Config) bool
	}{
		{"enable feature", []string{"-Fparallel"}, func(c *Config) bool { return c.IsFeatureEnabled(FeatParallel) }},
		{"disable feature", []string{"-Fno-fold"}, func(c *Config) bool { return !c.IsFeatureEnabled(FeatFold) }},
		{"wall", []string{"-Wall"}, func(c *Config) bool { return c.IsWarningEnabled(WarnUnused) }},
		{"wall first", []string{"-Wno-shadow", "-Wall"}, func(c *Config) bool {
			return !c.IsWarningEnabled(WarnShadow) && c.IsWarningEnabled(WarnUnused)
		}},
		{"wno-all", []string{"-Wno-all", "-Wextra"}, func(c *Config) bool {
			return !c.IsWarningEnabled(WarnShadow) && c.IsWarningEnabled(WarnExtra)
		}},
		{"unknown ignored", []string{"-Wbogus", "-Fbogus"}, func(c *Config) bool { return c.IsFeatureEnabled(FeatFold) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.ProcessFlags(tt.flags)
			if !tt.check(cfg) {
				t.Errorf("ProcessFlags(%q): features %+v warnings %+v", tt.flags, cfg.Features, cfg.Warnings)
			}
		})
	}
}

func TestFlagGroupsRoundTrip(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("test")
	w, f := cfg.SetupFlagGroups(fs)
	if err := fs.Parse([]string{"-Fconst-check", "-Wno-shadow", "-Wunused"}); err != nil {
		t.Fatal(err)
	}
	cfg.ApplyFlagGroups(w, f, false)
	if !cfg.IsFeatureEnabled(FeatConstCheck) || !cfg.IsFeatureEnabled(FeatFold) {
		t.Errorf("features = %+v", cfg.Features)
	}
	if cfg.IsWarningEnabled(WarnShadow) || !cfg.IsWarningEnabled(WarnUnused) {
		t.Errorf("warnings = %+v", cfg.Warnings)
	}
}

func TestWallKeepsExplicitDisable(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("test")
	w, f := cfg.SetupFlagGroups(fs)
	if err := fs.Parse([]string{"-Wno-extra"}); err != nil {
		t.Fatal(err)
	}
	cfg.ApplyFlagGroups(w, f, true)
	if !cfg.IsWarningEnabled(WarnUnused) || cfg.IsWarningEnabled(WarnExtra) {
		t.Errorf("warnings = %+v", cfg.Warnings)
	}
}
