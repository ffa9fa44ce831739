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

// Package tools contains utility types and functions for the capscan sub-commands.
package tools

import (
	"flag"
	"fmt"
	"go/build"
	"os"
	"runtime"
	"strings"

	"github.com/capscan/capscan/analysis"
	"github.com/capscan/capscan/analysis/config"
	"golang.org/x/tools/go/buildutil"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
)

// UnparsedCommonFlags represents an unparsed CLI sub-command flags.
type UnparsedCommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath *string
	Verbose    *bool
	Parallel   *int
	Exclude    *ExcludePaths
}

// NewUnparsedCommonFlags returns an unparsed flag set with a given name.
// This is useful for creating sub-commands that have the flags -config,
// -verbose, -parallel and -build-tags but need other flags in addition.
func NewUnparsedCommonFlags(name string) UnparsedCommonFlags {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := cmd.String("config", "", "config file path with the rules and the manifest (default: built-in rules)")
	verbose := cmd.Bool("verbose", false, "verbose printing on standard output")
	parallel := cmd.Int("parallel", runtime.NumCPU(), "number of packages analyzed in parallel")
	cmd.Var((*buildutil.TagsFlag)(&build.Default.BuildTags), "build-tags", buildutil.TagsFlagDoc)
	exclude := &ExcludePaths{}
	cmd.Var(exclude, "exclude", "file or directory whose calls are not reported (repeatable)")
	return UnparsedCommonFlags{
		FlagSet:    cmd,
		ConfigPath: configPath,
		Verbose:    verbose,
		Parallel:   parallel,
		Exclude:    exclude,
	}
}

// CommonFlags represents a parsed CLI sub-command flags.
// E.g., for the command `capscan check ...`, "check" is the sub-command.
type CommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath string
	Verbose    bool
	Parallel   int
	// Exclude holds the absolute paths of the excluded files and directories
	Exclude []string
}

// Parse parses args and returns the parsed common flags. cmdUsage is printed along with the flag docs as the
// --help message.
func (f UnparsedCommonFlags) Parse(args []string, cmdUsage string) (CommonFlags, error) {
	SetUsage(f.FlagSet, cmdUsage)
	if err := f.FlagSet.Parse(args); err != nil {
		return CommonFlags{}, fmt.Errorf("failed to parse command %s with args %v: %v", f.FlagSet.Name(), args, err)
	}
	return CommonFlags{
		FlagSet:    f.FlagSet,
		ConfigPath: *f.ConfigPath,
		Verbose:    *f.Verbose,
		Parallel:   *f.Parallel,
		Exclude:    analysis.MakeAbsolute(*f.Exclude),
	}, nil
}

// NewCommonFlags returns a parsed flag set with a given name.
// Returns an error if args are invalid.
// Prints cmdUsage along with flag docs as the --help message.
func NewCommonFlags(name string, args []string, cmdUsage string) (CommonFlags, error) {
	return NewUnparsedCommonFlags(name).Parse(args, cmdUsage)
}

// SetUsage sets cmd's usage (for --help flag) to output the string cmdUsage
// followed by each flag's documentation.
func SetUsage(cmd *flag.FlagSet, cmdUsage string) {
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", cmdUsage)
		fmt.Fprintf(os.Stderr, "Options:\n")
		cmd.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  %s: %s (default: %q)\n", f.Name, f.Usage, f.DefValue)
		})
	}
}

// ExcludePaths represents filepaths to exclude.
type ExcludePaths []string

func (e *ExcludePaths) String() string {
	if e == nil {
		return "[]"
	}
	return fmt.Sprintf("%v", []string(*e))
}

// Set adds value to e.
// This method satisfies the flag.Value interface.
func (e *ExcludePaths) Set(value string) error {
	*e = append(*e, value)
	return nil
}

// LoadConfig loads the config file from configPath. An empty path gives the default config.
// The verbose flag overrides the log level of the config.
func LoadConfig(flags CommonFlags) (*config.Config, error) {
	cfg := config.NewDefault()
	if flags.ConfigPath != "" {
		config.SetGlobalConfig(flags.ConfigPath)
		loaded, err := config.LoadGlobal()
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %v", flags.ConfigPath, err)
		}
		cfg = loaded
	}
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	return cfg, nil
}

// LoadProgram loads the packages named by the positional arguments of the flags, with the build tags set by
// -build-tags.
func LoadProgram(flags CommonFlags) (analysis.LoadedProgram, error) {
	pcfg := &packages.Config{Mode: analysis.PkgLoadMode}
	if len(build.Default.BuildTags) > 0 {
		pcfg.BuildFlags = []string{"-tags=" + strings.Join(build.Default.BuildTags, ",")}
	}
	prog, err := analysis.LoadProgram(pcfg, "", ssa.BuilderMode(0), flags.FlagSet.Args())
	if err != nil {
		return analysis.LoadedProgram{}, fmt.Errorf("could not load program: %v", err)
	}
	return prog, nil
}
