package config

import (
	"log/slog"
	"runtime"
	"strings"

	"github.com/xplshn/gpl0/pkg/cli"
)

type Feature int

const (
	FeatFold Feature = iota
	FeatConstCheck
	FeatParallel
	FeatCount
)

type Warning int

const (
	WarnShadow Warning = iota
	WarnUnreachableCode
	WarnConstAssign
	WarnUnused
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	Jobs       int
	Logger     *slog.Logger
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Jobs:       runtime.GOMAXPROCS(0),
		Logger:     slog.New(slog.DiscardHandler),
	}

	features := map[Feature]Info{
		FeatFold:       {"fold", true, "Fold literal arithmetic before generating code."},
		FeatConstCheck: {"const-check", false, "Reject assignments to 'let' bindings."},
		FeatParallel:   {"parallel", false, "Lower top-level functions concurrently and merge the results."},
	}

	warnings := map[Warning]Info{
		WarnShadow:          {"shadow", true, "Warn when a declaration hides one from an enclosing scope."},
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements after a 'return'."},
		WarnConstAssign:     {"const-assign", true, "Warn when a 'let' binding is reassigned."},
		WarnUnused:          {"unused", false, "Warn about variables that are never read."},
		WarnExtra:           {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// WarningName is the flag spelling of wt, as shown in diagnostics.
func (c *Config) WarningName(wt Warning) string { return c.Warnings[wt].Name }

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	isWarning := true
	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		isWarning = false
	default:
		name = trimmed
	}
	if isNo {
		name = strings.TrimPrefix(name, "no-")
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else if f, ok := c.FeatureMap[name]; ok {
		c.SetFeature(f, enable)
	}
}

// ProcessFlags applies -W/-F style switches in order, with -Wall and -Wno-all applied first.
func (c *Config) ProcessFlags(flags []string) {
	for _, f := range flags {
		if f == "-Wall" || f == "-Wno-all" {
			c.applyFlag(f)
		}
	}
	for _, f := range flags {
		if f != "-Wall" && f != "-Wno-all" {
			c.applyFlag(f)
		}
	}
}

// SetupFlagGroups registers one -W<name>/-Wno-<name> and -F<name>/-Fno-<name> pair per
// warning and feature on fs. The returned entries are indexed by Warning and Feature.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := info.Enabled, false
		warningFlags[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "W", Usage: info.Description, Enabled: &enabled, Disabled: &disabled}
	}
	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		enabled, disabled := info.Enabled, false
		featureFlags[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "F", Usage: info.Description, Enabled: &enabled, Disabled: &disabled}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning flag", "Available Warning Flags:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature flag", "Available feature flags:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies parsed group flags back into the configuration. wall turns every
// warning on first; an explicit -Wno-/-Fno- always wins.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry, wall bool) {
	for i, entry := range warningFlags {
		c.SetWarning(Warning(i), (wall || *entry.Enabled) && !*entry.Disabled)
	}
	for i, entry := range featureFlags {
		c.SetFeature(Feature(i), *entry.Enabled && !*entry.Disabled)
	}
}
