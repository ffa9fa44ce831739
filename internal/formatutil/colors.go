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

// Package formatutil colors terminal output and sanitizes strings taken from analyzed programs.
package formatutil

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"golang.org/x/term"
)

var (
	Bold  = Color("\033[1m%s\033[0m")
	Faint = Color("\033[2m%s\033[0m")
	Red   = Color("\033[1;31m%s\033[0m")
	Green = Color("\033[1;32m%s\033[0m")
	Cyan  = Color("\033[1;36m%s\033[0m")
)

var enabled atomic.Bool

func init() {
	_, noColor := os.LookupEnv("NO_COLOR")
	enabled.Store(!noColor && term.IsTerminal(int(os.Stdout.Fd())))
}

// SetColors turns colors on or off. By default, colors are on when stdout is a terminal and NO_COLOR is not set.
func SetColors(on bool) {
	enabled.Store(on)
}

// Color returns a function that formats its arguments like fmt.Sprint, wrapped in the escape sequence of
// colorString when colors are on.
func Color(colorString string) func(...any) string {
	return func(args ...any) string {
		s := fmt.Sprint(args...)
		if !enabled.Load() {
			return s
		}
		return fmt.Sprintf(colorString, s)
	}
}

// Sanitize escapes the control characters and quotes of s, so that strings found in programs cannot inject escape
// sequences in the output
func Sanitize(s string) string {
	q := strconv.Quote(s)
	return q[1 : len(q)-1]
}
