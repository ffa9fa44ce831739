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

package astflow

import (
	"go/ast"
	"go/constant"
	"go/token"
	"strconv"

	"github.com/capscan/capscan/analysis/strflow"
)

// TryExtract recognizes the expressions whose value is known without traversal: string literals, named constants
// and constant expressions, and package variables initialized with a constant that are never written.
func (r *Resolver) TryExtract(expr ast.Expr) (strflow.Candidate, bool) {
	if lit, ok := expr.(*ast.BasicLit); ok && lit.Kind == token.STRING {
		if v, err := strconv.Unquote(lit.Value); err == nil {
			return strflow.Candidate{Value: v, Provenance: strflow.Literal, Pos: lit.Pos()}, true
		}
	}
	if c := r.stringConstant(expr); c != nil {
		return strflow.Candidate{Value: constant.StringVal(c), Provenance: strflow.QualifiedConstant, Pos: expr.Pos()}, true
	}
	if v := r.referencedVar(expr); v != nil {
		if c, ok := r.constVars[v]; ok {
			return strflow.Candidate{Value: constant.StringVal(c), Provenance: strflow.QualifiedConstant, Pos: expr.Pos()}, true
		}
	}
	return strflow.Candidate{}, false
}
