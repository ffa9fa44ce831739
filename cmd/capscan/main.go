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

package main

import (
	"fmt"
	"os"

	"github.com/capscan/capscan/analysis"
	"github.com/capscan/capscan/cmd/capscan/check"
	"github.com/capscan/capscan/cmd/capscan/disasm"
	"github.com/capscan/capscan/cmd/capscan/tools"
	"github.com/capscan/capscan/cmd/capscan/values"
)

const usage = `Capscan: static resolution of string arguments and capability checks
Usage:
  capscan [tool] [options] <package path(s)>
Tools:
  - check: reports the calls requiring capabilities the manifest does not declare
  - values: prints the string values that may flow into an argument of the matching calls
  - disasm: prints the instruction listings the graph engine works on
Examples:
  Check a module: capscan check -config config.yaml ./...
  Print the networks of net.Dial calls: capscan values -call '^net\.Dial$' ./...`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(analysis.Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "check":
		flags, err := check.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		n, err := check.Run(flags)
		if err != nil {
			errExit(err)
		}
		if n > 0 {
			os.Exit(1)
		}
	case "values":
		flags, err := values.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := values.Run(flags); err != nil {
			errExit(err)
		}
	case "disasm":
		flags, err := disasm.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := disasm.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
