// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"

	"github.com/capscan/capscan/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the resolvers and the rules of the capability checker.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// Manifest is the path to the capability manifest, relative to the config file. When empty, no capability is
	// declared and every requirement of a matched rule is reported.
	Manifest string `yaml:"manifest"`

	// Rules lists the calls the capability checker inspects
	Rules []Rule `yaml:"rules"`
}

// Rule identifies a set of calls whose string argument decides which capabilities the program needs.
type Rule struct {
	// ID is the identifier of the rule, used in reports
	ID string `yaml:"id"`

	// Target identifies the called functions. The package, receiver and method strings are regexes if they compile.
	Target CodeIdentifier `yaml:",inline"`

	// Argument is the position of the inspected argument, receiver excluded. When nil, the first parameter whose
	// underlying type is string is inspected, and calls without such a parameter are not resolved at all.
	Argument *int `yaml:"argument"`

	// Values maps a resolved argument value to the capabilities it requires
	Values map[string][]string `yaml:"values"`

	// Requires lists the capabilities every matched call requires, whatever its arguments
	Requires []string `yaml:"requires"`

	// Heuristic restricts the instruction-graph engine to the constant loaded right before the call. This is cheaper
	// and misses values produced by longer instruction sequences.
	Heuristic bool `yaml:"heuristic"`
}

// Options holds the general options of the analyses.
type Options struct {
	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// MaxDepth bounds the number of nested variable and call traces of a single resolution request.
	// If MaxDepth <= 0, DefaultMaxTraceDepth is used.
	MaxDepth int `yaml:"max-depth"`

	// MaxPaths bounds the number of control-flow paths the instruction-graph engine enumerates for a single
	// resolution request. If MaxPaths <= 0, DefaultMaxPaths is used.
	MaxPaths int `yaml:"max-paths"`

	// SilenceWarn suppresses warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns a default config with the built-in network rules.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Manifest:   "",
		Rules:      DefaultRules(),
		Options: Options{
			LogLevel:    int(InfoLevel),
			MaxDepth:    DefaultMaxTraceDepth,
			MaxPaths:    DefaultMaxPaths,
			SilenceWarn: false,
		},
	}
}

// DefaultRules returns the rules used when no config file is given: socket creation in package net, keyed by the
// network name.
func DefaultRules() []Rule {
	network := map[string][]string{
		"tcp":        {CapabilityNetworkTCP},
		"tcp4":       {CapabilityNetworkTCP},
		"tcp6":       {CapabilityNetworkTCP},
		"udp":        {CapabilityNetworkUDP},
		"udp4":       {CapabilityNetworkUDP},
		"udp6":       {CapabilityNetworkUDP},
		"ip":         {CapabilityNetworkRaw},
		"ip4":        {CapabilityNetworkRaw},
		"ip6":        {CapabilityNetworkRaw},
		"unix":       {CapabilityUnixSocket},
		"unixgram":   {CapabilityUnixSocket},
		"unixpacket": {CapabilityUnixSocket},
	}
	rules := []Rule{
		{
			ID:     "net-dial",
			Target: CodeIdentifier{Package: "^net$", Method: "^(Dial|DialTimeout|Listen|ListenPacket)$"},
			Values: network,
		},
		{
			ID:     "net-dialer",
			Target: CodeIdentifier{Package: "^net$", Receiver: "^(Dialer|ListenConfig)$", Method: "^(Dial|DialContext|Listen|ListenPacket)$"},
			Values: network,
		},
	}
	funcutil.MapInPlace(rules, func(r Rule) Rule {
		r.Target = CompileRegexes(r.Target)
		return r
	})
	return rules
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	cfg.Rules = nil
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxTraceDepth
	}

	if cfg.MaxPaths <= 0 {
		cfg.MaxPaths = DefaultMaxPaths
	}

	if len(cfg.Rules) == 0 {
		cfg.Rules = DefaultRules()
	}

	for i, rule := range cfg.Rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule %d in %s has no id", i, filename)
		}
		if len(rule.Values) == 0 && len(rule.Requires) == 0 {
			return nil, fmt.Errorf("rule %s requires nothing", rule.ID)
		}
		if rule.Argument != nil && *rule.Argument < 0 {
			return nil, fmt.Errorf("rule %s has negative argument position %d", rule.ID, *rule.Argument)
		}
	}

	funcutil.MapInPlace(cfg.Rules, func(r Rule) Rule {
		r.Target = CompileRegexes(r.Target)
		return r
	})

	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	if path.IsAbs(filename) {
		return filename
	}
	return path.Join(path.Dir(c.sourceFile), filename)
}

// LoadManifest loads the manifest referenced by the config. A config without manifest declares nothing.
func (c Config) LoadManifest() (*Manifest, error) {
	if c.Manifest == "" {
		return &Manifest{}, nil
	}
	return LoadManifest(c.RelPath(c.Manifest))
}

// MatchingRules returns the rules whose target matches the code identifier of a called function.
func (c Config) MatchingRules(callee CodeIdentifier) []Rule {
	var rules []Rule
	for _, rule := range c.Rules {
		if callee.equalOnNonEmptyFields(rule.Target) {
			rules = append(rules, rule)
		}
	}
	return rules
}

// ArgumentPosition returns the position of the argument the rule inspects, given the types of the parameters of the
// called function (receiver excluded). The second result is false when the rule pins no argument and no parameter is
// string-typed, in which case the argument must not be resolved.
func (r Rule) ArgumentPosition(isString func(i int) bool, numParams int) (int, bool) {
	if r.Argument != nil {
		return *r.Argument, *r.Argument < numParams
	}
	for i := 0; i < numParams; i++ {
		if isString(i) {
			return i, true
		}
	}
	return -1, false
}
