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

// Package astflow resolves the possible string values of call arguments over Go syntax trees, using the type
// information of the package for symbol resolution.
//
// The compilation boundary is the package: call-return tracing only enters functions declared in the files given to
// the resolver.
package astflow

import (
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"

	"github.com/capscan/capscan/analysis/config"
	"github.com/capscan/capscan/analysis/strflow"
	"golang.org/x/tools/go/ast/astutil"
)

// Frontend is the syntax and type information of one package. It is only read by the resolver.
type Frontend struct {
	Fset  *token.FileSet
	Files []*ast.File
	Info  *types.Info
}

// Options of the tree resolver
type Options struct {
	// Logger is the logger of the resolver. A nil logger discards everything.
	Logger *config.LogGroup
	// MaxDepth bounds the nested traces of one request
	MaxDepth int
}

// OptionsFromConfig returns the resolver options set by the config
func OptionsFromConfig(cfg *config.Config, logger *config.LogGroup) Options {
	return Options{Logger: logger, MaxDepth: cfg.MaxDepth}
}

// A Resolver resolves string values in one package. It can serve concurrent requests.
type Resolver struct {
	Frontend
	opts Options

	// decls maps the functions declared in the package to their declaration
	decls map[*types.Func]*ast.FuncDecl

	// constVars holds the package variables initialized with a constant string and never written
	constVars map[*types.Var]constant.Value
}

// NewResolver returns a resolver for the package described by fe
func NewResolver(fe Frontend, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = config.Discard()
	}
	r := &Resolver{
		Frontend:  fe,
		opts:      opts,
		decls:     map[*types.Func]*ast.FuncDecl{},
		constVars: map[*types.Var]constant.Value{},
	}
	r.index()
	return r
}

func (r *Resolver) index() {
	inits := map[*types.Var]constant.Value{}
	written := map[*types.Var]bool{}
	markWritten := func(e ast.Expr) {
		if v := r.referencedVar(e); v != nil {
			written[v] = true
		}
	}

	for _, f := range r.Files {
		for _, d := range f.Decls {
			switch d := d.(type) {
			case *ast.FuncDecl:
				if fn, ok := r.Info.Defs[d.Name].(*types.Func); ok && d.Body != nil {
					r.decls[fn] = d
				}
			case *ast.GenDecl:
				if d.Tok != token.VAR {
					continue
				}
				for _, spec := range d.Specs {
					vs := spec.(*ast.ValueSpec)
					if len(vs.Values) != len(vs.Names) {
						continue
					}
					for i, name := range vs.Names {
						v, ok := r.Info.Defs[name].(*types.Var)
						if !ok || !isString(v.Type()) {
							continue
						}
						if c := r.stringConstant(vs.Values[i]); c != nil {
							inits[v] = c
						}
					}
				}
			}
		}

		ast.Inspect(f, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.AssignStmt:
				for _, lhs := range n.Lhs {
					markWritten(lhs)
				}
			case *ast.IncDecStmt:
				markWritten(n.X)
			case *ast.RangeStmt:
				if n.Key != nil {
					markWritten(n.Key)
				}
				if n.Value != nil {
					markWritten(n.Value)
				}
			case *ast.UnaryExpr:
				// taking the address of a variable lets anything write it
				if n.Op == token.AND {
					markWritten(n.X)
				}
			}
			return true
		})
	}

	for v, c := range inits {
		if !written[v] {
			r.constVars[v] = c
		}
	}
}

// ResolvePossibleStringValues returns the string values that may flow into the argument at position arg of call.
// The result is empty when nothing could be resolved.
func (r *Resolver) ResolvePossibleStringValues(call *ast.CallExpr, arg int) strflow.CandidateSet {
	if call == nil || arg < 0 || arg >= len(call.Args) {
		return strflow.CandidateSet{}
	}
	req := strflow.NewRequest(r.opts.Logger, r.opts.MaxDepth, 0)
	res := strflow.Aggregate(r.resolveExpr(call.Args[arg], r.scopeAt(call.Pos()), req))
	req.Logger.Debugf("%s: argument %d resolves to %s", r.Fset.Position(call.Pos()), arg, res)
	return res
}

// resolveExpr takes the first hop from the argument expression, which decides the provenance of all the candidates.
func (r *Resolver) resolveExpr(e ast.Expr, sc scope, req *strflow.Request) []strflow.Candidate {
	e = r.unwrap(e)
	if c, ok := r.TryExtract(e); ok {
		return []strflow.Candidate{c}
	}
	switch x := e.(type) {
	case *ast.Ident:
		if v, ok := r.Info.Uses[x].(*types.Var); ok {
			return r.traceVar(v, x.Pos(), req).Retag(strflow.TracedVariable)
		}
	case *ast.CallExpr:
		return r.traceCall(x, 0, sc, req).Retag(strflow.TracedReturn)
	}
	return nil
}

// unwrap removes the value-preserving wrappers around e
func (r *Resolver) unwrap(e ast.Expr) ast.Expr {
	for {
		switch x := e.(type) {
		case *ast.ParenExpr:
			e = x.X
		case *ast.TypeAssertExpr:
			e = x.X
		case *ast.CallExpr:
			if !r.isConversion(x) {
				return e
			}
			e = x.Args[0]
		default:
			return e
		}
	}
}

// isConversion returns true if call converts its single argument to a string type
func (r *Resolver) isConversion(call *ast.CallExpr) bool {
	if len(call.Args) != 1 {
		return false
	}
	tv, ok := r.Info.Types[call.Fun]
	return ok && tv.IsType() && isString(tv.Type)
}

// referencedVar returns the variable e denotes, or nil
func (r *Resolver) referencedVar(e ast.Expr) *types.Var {
	switch x := astutil.Unparen(e).(type) {
	case *ast.Ident:
		if v, ok := r.Info.Uses[x].(*types.Var); ok {
			return v
		}
		if v, ok := r.Info.Defs[x].(*types.Var); ok {
			return v
		}
	case *ast.SelectorExpr:
		if v, ok := r.Info.Uses[x.Sel].(*types.Var); ok {
			return v
		}
	}
	return nil
}

func (r *Resolver) stringConstant(e ast.Expr) constant.Value {
	tv, ok := r.Info.Types[e]
	if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
		return nil
	}
	return tv.Value
}

// isString returns true if the underlying type of t is a string type
func isString(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsString != 0
}

// mayHoldString returns true for the variables whose writes are traced: strings and interfaces
func mayHoldString(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Interface:
		return true
	default:
		return isString(t)
	}
}
