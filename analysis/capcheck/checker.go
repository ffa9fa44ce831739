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

// Package capcheck reports the calls whose string arguments require capabilities that the manifest of the program
// does not declare. Calls are selected by the rules of the config; the values their arguments can take are computed
// by the syntax-tree resolver (CheckSyntax) or by the instruction-graph resolver (CheckUnit).
package capcheck

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/capscan/capscan/analysis/config"
	"github.com/capscan/capscan/analysis/strflow"
	"github.com/capscan/capscan/analysis/strflow/astflow"
	"github.com/capscan/capscan/analysis/strflow/stackflow"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// A Finding is a call that requires a capability the manifest does not grant
type Finding struct {
	Issue      Issue
	Pos        token.Pos
	Callee     config.CodeIdentifier
	Capability string

	// Values are the argument values that require the capability. They are empty when the capability is required
	// by the call whatever its arguments.
	Values []string
}

// Message is the text reported for the finding
func (f Finding) Message() string {
	msg := fmt.Sprintf("%s requires undeclared capability %s", f.Callee, f.Capability)
	if len(f.Values) > 0 {
		msg += fmt.Sprintf(" (argument may be %s)", strings.Join(f.Values, ", "))
	}
	return msg
}

// A Checker matches calls against the rules of a config and the capabilities of a manifest
type Checker struct {
	Config   *config.Config
	Manifest *config.Manifest
	Logger   *config.LogGroup
}

// NewChecker returns a checker. A nil config uses the default rules, and a nil manifest declares nothing.
func NewChecker(cfg *config.Config, manifest *config.Manifest, logger *config.LogGroup) *Checker {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if manifest == nil {
		manifest = &config.Manifest{}
	}
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	return &Checker{Config: cfg, Manifest: manifest, Logger: logger}
}

// site is a call to check, independently of the program representation
type site struct {
	callee    config.CodeIdentifier
	pos       token.Pos
	numParams int
	isString  func(i int) bool
	resolve   func(rule config.Rule, arg int) strflow.CandidateSet
}

// check returns the findings of one call. A capability is reported at most once per call, whatever the number of
// rules and values requiring it.
func (c *Checker) check(s site, issue Issue) []Finding {
	rules := c.Config.MatchingRules(s.callee)
	if len(rules) == 0 {
		return nil
	}
	var required []string
	because := map[string][]string{}
	for _, rule := range rules {
		required = append(required, rule.Requires...)
		if len(rule.Values) == 0 {
			continue
		}
		arg, ok := rule.ArgumentPosition(s.isString, s.numParams)
		if !ok {
			c.Logger.Debugf("rule %s: no string argument in call to %s", rule.ID, s.callee)
			continue
		}
		for _, candidate := range s.resolve(rule, arg) {
			for _, capability := range rule.Values[candidate.Value] {
				required = append(required, capability)
				if !slices.Contains(because[capability], candidate.Value) {
					because[capability] = append(because[capability], candidate.Value)
				}
			}
		}
	}
	var findings []Finding
	for _, capability := range c.Manifest.Missing(required) {
		findings = append(findings, Finding{
			Issue:      issue,
			Pos:        s.pos,
			Callee:     s.callee,
			Capability: capability,
			Values:     because[capability],
		})
	}
	return findings
}

// CheckSyntax checks the calls of a package with the syntax-tree resolver
func (c *Checker) CheckSyntax(fe astflow.Frontend) []Finding {
	r := astflow.NewResolver(fe, astflow.OptionsFromConfig(c.Config, c.Logger))
	var findings []Finding
	inspector.New(fe.Files).Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		fn, ok := typeutil.Callee(fe.Info, call).(*types.Func)
		if !ok {
			return
		}
		sig := fn.Type().(*types.Signature)
		resolved := map[int]strflow.CandidateSet{}
		findings = append(findings, c.check(site{
			callee:    FuncIdentifier(fn),
			pos:       call.Pos(),
			numParams: sig.Params().Len(),
			isString: func(i int) bool {
				return bytecode.TypeName(sig.Params().At(i).Type()) == bytecode.StringType
			},
			resolve: func(_ config.Rule, arg int) strflow.CandidateSet {
				if res, ok := resolved[arg]; ok {
					return res
				}
				resolved[arg] = r.ResolvePossibleStringValues(call, arg)
				return resolved[arg]
			},
		}, UndeclaredCapability)...)
	})
	return findings
}

// CheckUnit checks the invoke instructions of a unit with the instruction-graph resolver. Rules with the heuristic
// flag only look at the constant loaded right before the call, which resolves the last argument only.
func (c *Checker) CheckUnit(unit *bytecode.Unit) []Finding {
	r := stackflow.NewResolver(unit, stackflow.OptionsFromConfig(c.Config, c.Logger))
	var findings []Finding
	for _, m := range unit.Methods {
		for _, i := range m.Invokes() {
			in := m.Code[i]
			resolved := map[int]strflow.CandidateSet{}
			findings = append(findings, c.check(site{
				callee:    InvokeIdentifier(in),
				pos:       in.Pos,
				numParams: len(in.Desc.Params),
				isString:  in.Desc.IsString,
				resolve: func(rule config.Rule, arg int) strflow.CandidateSet {
					if rule.Heuristic {
						// only the last argument is pushed right before the call
						if arg != len(in.Desc.Params)-1 {
							return strflow.CandidateSet{}
						}
						return r.ResolvePreviousConstant(m, i)
					}
					if res, ok := resolved[arg]; ok {
						return res
					}
					resolved[arg] = r.ResolvePossibleStringValues(m, i, arg)
					return resolved[arg]
				},
			}, UndeclaredCapabilityBytecode)...)
		}
	}
	return findings
}

// FuncIdentifier returns the code identifier of a function or method
func FuncIdentifier(fn *types.Func) config.CodeIdentifier {
	id := config.CodeIdentifier{Method: fn.Name()}
	if fn.Pkg() != nil {
		id.Package = fn.Pkg().Path()
	}
	if recv := fn.Type().(*types.Signature).Recv(); recv != nil {
		t := recv.Type()
		if ptr, ok := t.(*types.Pointer); ok {
			t = ptr.Elem()
		}
		if named, ok := t.(*types.Named); ok {
			id.Receiver = named.Obj().Name()
		}
	}
	return id
}

// InvokeIdentifier returns the code identifier of the callee of an invoke instruction. The owner of a virtual call
// ends with the receiver type name.
func InvokeIdentifier(in bytecode.Instruction) config.CodeIdentifier {
	id := config.CodeIdentifier{Package: in.Owner, Method: in.Name}
	if in.Op == bytecode.INVOKEVIRTUAL {
		if i := strings.LastIndexByte(in.Owner, '.'); i > 0 {
			id.Package, id.Receiver = in.Owner[:i], in.Owner[i+1:]
		}
	}
	return id
}
