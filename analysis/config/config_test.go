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
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func checkEqualOnNonEmptyFields(t *testing.T, cid1 CodeIdentifier, cid2 CodeIdentifier) {
	cid2c := CompileRegexes(cid2)
	if !cid1.equalOnNonEmptyFields(cid2c) {
		t.Errorf("%v should be equal modulo empty fields to %v", cid1, cid2)
	}
}

func checkNotEqualOnNonEmptyFields(t *testing.T, cid1 CodeIdentifier, cid2 CodeIdentifier) {
	cid2c := CompileRegexes(cid2)
	if cid1.equalOnNonEmptyFields(cid2c) {
		t.Errorf("%v should not be equal modulo empty fields to %v", cid1, cid2)
	}
}

func TestCodeIdentifier_equalOnNonEmptyFields_selfEquals(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Method: "b"}
	checkEqualOnNonEmptyFields(t, cid1, cid1)
}

func TestCodeIdentifier_equalOnNonEmptyFields_emptyMatchesAny(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Receiver: "b", Method: "c"}
	cid2 := CodeIdentifier{Package: "de", Receiver: "234jbn", Method: "ef"}
	cidEmpty := CodeIdentifier{}
	checkEqualOnNonEmptyFields(t, cid1, cidEmpty)
	checkEqualOnNonEmptyFields(t, cid2, cidEmpty)
}

func TestCodeIdentifier_equalOnNonEmptyFields_oneDiff(t *testing.T) {
	cid1 := CodeIdentifier{Package: "^a$", Receiver: "^b$"}
	cid2 := CodeIdentifier{Package: "^a$"}
	checkEqualOnNonEmptyFields(t, CodeIdentifier{Package: "a", Receiver: "b"}, cid2)
	checkNotEqualOnNonEmptyFields(t, CodeIdentifier{Package: "a"}, cid1)
}

func TestCodeIdentifier_equalOnNonEmptyFields_regexes(t *testing.T) {
	cid1 := CodeIdentifier{Package: "main", Method: "b"}
	cid1bis := CodeIdentifier{Package: "command-line-arguments", Method: "b"}
	cid2 := CodeIdentifier{Package: "(main)|(command-line-arguments)$"}
	checkEqualOnNonEmptyFields(t, cid1, cid2)
	checkEqualOnNonEmptyFields(t, cid1bis, cid2)
}

func TestCodeIdentifier_String(t *testing.T) {
	cid := CodeIdentifier{Package: "net", Receiver: "Dialer", Method: "Dial"}
	if s := cid.String(); s != "net.(Dialer).Dial" {
		t.Errorf("unexpected string %q", s)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if cfg.LogLevel != int(DebugLevel) {
		t.Errorf("expected log level %d, got %d", DebugLevel, cfg.LogLevel)
	}
	if cfg.MaxDepth != 8 {
		t.Errorf("expected max depth 8, got %d", cfg.MaxDepth)
	}
	if cfg.MaxPaths != DefaultMaxPaths {
		t.Errorf("expected default max paths, got %d", cfg.MaxPaths)
	}
	if len(cfg.Rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(cfg.Rules))
	}
	r := cfg.Rules[0]
	if r.ID != "provider-enabled" || !r.Heuristic || r.Target.Receiver != "Manager" {
		t.Errorf("unexpected first rule %+v", r)
	}
	if diff := cmp.Diff([]string{"location.coarse"}, r.Values["network"]); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
	if cfg.Rules[1].Argument == nil || *cfg.Rules[1].Argument != 0 {
		t.Errorf("expected argument 0 in second rule")
	}
	if diff := cmp.Diff([]string{"location.coarse"}, cfg.Rules[2].Requires); diff != "" {
		t.Errorf("unexpected requirements (-want +got):\n%s", diff)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "empty.yaml"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if cfg.LogLevel != int(InfoLevel) || cfg.MaxDepth != DefaultMaxTraceDepth || !cfg.SilenceWarn {
		t.Errorf("unexpected options %+v", cfg.Options)
	}
	if len(cfg.Rules) != len(DefaultRules()) {
		t.Errorf("expected the default rules, got %d rules", len(cfg.Rules))
	}
	m, err := cfg.LoadManifest()
	if err != nil {
		t.Fatalf("could not load empty manifest: %v", err)
	}
	if m.Has(CapabilityNetworkTCP) {
		t.Errorf("empty manifest should declare nothing")
	}
}

func TestLoadConfigRejectsRuleWithoutID(t *testing.T) {
	if _, err := Load(filepath.Join("testdata", "bad-rule.yaml")); err == nil {
		t.Errorf("expected an error for a rule without id")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join("testdata", "does-not-exist.yaml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestRelPath(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if p := cfg.RelPath("manifest.yaml"); p != "testdata/manifest.yaml" {
		t.Errorf("unexpected relative path %q", p)
	}
	if p := cfg.RelPath("/etc/manifest.yaml"); p != "/etc/manifest.yaml" {
		t.Errorf("absolute paths should be unchanged, got %q", p)
	}
}

func TestManifest(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	m, err := cfg.LoadManifest()
	if err != nil {
		t.Fatalf("could not load manifest: %v", err)
	}
	if !m.Has("location.fine") {
		t.Errorf("location.fine is declared")
	}
	if !m.Has("location.coarse") {
		t.Errorf("location.coarse is implied by location.fine")
	}
	if m.Has("network.tcp") {
		t.Errorf("network.tcp is not declared")
	}
	missing := m.Missing([]string{"network.tcp", "location.coarse", "network.tcp", "network.udp"})
	if diff := cmp.Diff([]string{"network.tcp", "network.udp"}, missing); diff != "" {
		t.Errorf("unexpected missing capabilities (-want +got):\n%s", diff)
	}
}

func TestManifestCyclicImplications(t *testing.T) {
	m := &Manifest{
		Declared: []string{"a"},
		Implies:  map[string][]string{"a": {"b"}, "b": {"a", "c"}},
	}
	if !m.Has("c") {
		t.Errorf("c is implied through b")
	}
	if m.Has("d") {
		t.Errorf("d is not declared")
	}
}

func TestMatchingRules(t *testing.T) {
	cfg := NewDefault()
	rules := cfg.MatchingRules(CodeIdentifier{Package: "net", Method: "Dial"})
	if len(rules) != 1 || rules[0].ID != "net-dial" {
		t.Errorf("expected net-dial to match net.Dial, got %v", rules)
	}
	rules = cfg.MatchingRules(CodeIdentifier{Package: "net", Receiver: "Dialer", Method: "DialContext"})
	if len(rules) != 1 || rules[0].ID != "net-dialer" {
		t.Errorf("expected net-dialer to match net.(Dialer).DialContext, got %v", rules)
	}
	if rules = cfg.MatchingRules(CodeIdentifier{Package: "net/http", Method: "Get"}); len(rules) != 0 {
		t.Errorf("expected no rule for net/http.Get, got %v", rules)
	}
}

func TestArgumentPosition(t *testing.T) {
	isString := func(params ...bool) func(int) bool {
		return func(i int) bool { return params[i] }
	}
	r := Rule{}
	if i, ok := r.ArgumentPosition(isString(false, true), 2); !ok || i != 1 {
		t.Errorf("expected first string parameter 1, got %d %v", i, ok)
	}
	if _, ok := r.ArgumentPosition(isString(false, false), 2); ok {
		t.Errorf("no string parameter should not be resolved")
	}
	two := 2
	r.Argument = &two
	if _, ok := r.ArgumentPosition(isString(true, true), 2); ok {
		t.Errorf("argument out of range should not be resolved")
	}
}
