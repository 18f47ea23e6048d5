package config

import (
	"fmt"
	"strings"

	"github.com/xplshn/sqltok/pkg/cli"
)

type Feature int

const (
	FeatQuotedIdents Feature = iota
	FeatFoldCase
	FeatStrictExponent
	FeatCRWhitespace
	FeatCount
)

type Warning int

const (
	WarnKeywordCase Warning = iota
	WarnQuotedKeyword
	WarnLooseExponent
	WarnKeywordPrefix
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
	Mode       string
}

func NewConfig() *Config {
	cfg := &Config{
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Mode:       "compat",
	}

	features := map[Feature]Info{
		FeatQuotedIdents:   {"quoted-idents", true, "Lex \"double quoted\" text as an identifier."},
		FeatFoldCase:       {"fold-case", false, "Match keywords regardless of ASCII case."},
		FeatStrictExponent: {"strict-exponent", false, "Require digits after a numeric exponent marker."},
		FeatCRWhitespace:   {"cr-whitespace", true, "Treat '\\r' as whitespace."},
	}

	warnings := map[Warning]Info{
		WarnKeywordCase:   {"keyword-case", true, "Warn on identifiers that are keywords in another case."},
		WarnQuotedKeyword: {"quoted-keyword", true, "Warn on quoted identifiers spelled like a keyword."},
		WarnLooseExponent: {"loose-exponent", false, "Warn on numeric exponents without digits."},
		WarnKeywordPrefix: {"keyword-prefix", false, "Warn on identifiers that start with a keyword."},
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

// ApplyMode switches every mode-dependent feature and warning at once.
// Flags applied afterwards override it.
func (c *Config) ApplyMode(mode string) error {
	type modeSettings struct {
		feature Feature
		compat  bool
		strict  bool
	}

	settings := []modeSettings{
		{FeatFoldCase, false, true},
		{FeatStrictExponent, false, true},
		{FeatQuotedIdents, true, true},
	}

	switch mode {
	case "compat":
		for _, s := range settings {
			c.SetFeature(s.feature, s.compat)
		}
		c.SetWarning(WarnLooseExponent, false)
		c.SetWarning(WarnKeywordCase, true)
	case "strict":
		for _, s := range settings {
			c.SetFeature(s.feature, s.strict)
		}
		c.SetWarning(WarnLooseExponent, true)
		// keyword case cannot happen once keywords fold
		c.SetWarning(WarnKeywordCase, false)
	default:
		return fmt.Errorf("unsupported mode '%s'. Supported: 'compat', 'strict'", mode)
	}
	c.Mode = mode
	return nil
}

func (c *Config) applyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
	default:
		return fmt.Errorf("unknown flag '%s': expected -W<warning> or -F<feature>", flag)
	}
	if isNo {
		name = strings.TrimPrefix(name, "no-")
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// ProcessFlagString applies whitespace separated -W/-F flags, e.g. from a
// SQLTOK_FLAGS environment variable.
func (c *Config) ProcessFlagString(flagStr string) error {
	for _, flag := range strings.Fields(flagStr) {
		if err := c.applyFlag(flag); err != nil {
			return err
		}
	}
	return nil
}

// FlagGroups holds the -W/-F switches registered on a cli.FlagSet.
// Warnings and Features are indexed by Warning and Feature.
type FlagGroups struct {
	Warnings []cli.FlagGroupEntry
	Features []cli.FlagGroupEntry
	// anything else after -W or -F, e.g. -Wall or a misspelled name
	rawWarnings []string
	rawFeatures []string
}

func (c *Config) SetupFlagGroups(fs *cli.FlagSet) *FlagGroups {
	g := &FlagGroups{
		Warnings: make([]cli.FlagGroupEntry, WarnCount),
		Features: make([]cli.FlagGroupEntry, FeatCount),
	}
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		g.Warnings[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description, Default: info.Enabled,
			Enabled: new(bool), Disabled: new(bool),
		}
	}
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		g.Features[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description, Default: info.Enabled,
			Enabled: new(bool), Disabled: new(bool),
		}
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", g.Warnings)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature", "Available feature flags:", g.Features)
	fs.Special(&g.rawWarnings, "W", "Enable a warning group (e.g. -Wall, -Wno-all)", "warning")
	fs.Special(&g.rawFeatures, "F", "Enable a feature by name", "feature")
	return g
}

// ApplyFlagGroups applies the switches given on the command line. Group
// switches like -Wall go first so that specific ones can override them;
// switches that were not given leave the current setting alone.
func (c *Config) ApplyFlagGroups(g *FlagGroups) error {
	for _, name := range g.rawWarnings {
		if err := c.applyFlag("-W" + name); err != nil {
			return err
		}
	}
	for _, name := range g.rawFeatures {
		if err := c.applyFlag("-F" + name); err != nil {
			return err
		}
	}

	for i, entry := range g.Warnings {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range g.Features {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
	return nil
}
