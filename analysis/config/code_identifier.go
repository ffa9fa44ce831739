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
	"regexp"
)

// A CodeIdentifier identifies a called function from its package path, receiver type name and method name, or any
// combination of those. The empty string matches anything.
type CodeIdentifier struct {
	Package  string `yaml:"package"`
	Receiver string `yaml:"receiver"`
	Method   string `yaml:"method"`
	// This will not be part of the yaml config
	computedRegexs *CodeIdentifierRegex
}

// CodeIdentifierRegex holds the compiled regexes of a CodeIdentifier
type CodeIdentifierRegex struct {
	packageRegex  *regexp.Regexp
	methodRegex   *regexp.Regexp
	receiverRegex *regexp.Regexp
}

// CompileRegexes compiles the strings in the code identifier into regexes. It compiles all identifiers into regexes
// or none.
// @ensures cid.computedRegexs != null || cid.computedRegexs.(*) != null
func CompileRegexes(cid CodeIdentifier) CodeIdentifier {
	packageRegex, err := regexp.Compile(cid.Package)
	if err != nil {
		return cid
	}
	methodRegex, err := regexp.Compile(cid.Method)
	if err != nil {
		return cid
	}
	receiverRegex, err := regexp.Compile(cid.Receiver)
	if err != nil {
		return cid
	}
	cid.computedRegexs = &CodeIdentifierRegex{
		packageRegex:  packageRegex,
		methodRegex:   methodRegex,
		receiverRegex: receiverRegex,
	}
	return cid
}

// String returns the identifier in the form package.(receiver).method, leaving out the empty parts
func (cid CodeIdentifier) String() string {
	s := cid.Package
	if cid.Receiver != "" {
		s += fmt.Sprintf(".(%s)", cid.Receiver)
	}
	if cid.Method != "" {
		s += "." + cid.Method
	}
	return s
}

// equalOnNonEmptyFields returns true if each of the receiver's fields are either equal to the corresponding
// argument's field, or the argument's field is empty
func (cid *CodeIdentifier) equalOnNonEmptyFields(cidRef CodeIdentifier) bool {
	if cidRef.computedRegexs != nil {
		return ((cidRef.computedRegexs.packageRegex.MatchString(cid.Package)) || (cidRef.Package == "")) &&
			((cidRef.computedRegexs.methodRegex.MatchString(cid.Method)) || (cidRef.Method == "")) &&
			((cidRef.computedRegexs.receiverRegex.MatchString(cid.Receiver)) || (cidRef.Receiver == ""))
	}
	return ((cid.Package == cidRef.Package) || (cidRef.Package == "")) &&
		((cid.Method == cidRef.Method) || (cidRef.Method == "")) &&
		((cid.Receiver == cidRef.Receiver) || (cidRef.Receiver == ""))
}
