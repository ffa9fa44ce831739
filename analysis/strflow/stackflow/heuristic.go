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

package stackflow

import (
	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/capscan/capscan/analysis/strflow"
)

// ResolvePreviousConstant is the cheap variant of ResolvePossibleStringValues: it returns the string constant loaded
// by the instruction right before the call at index call of m, skipping labels, line markers and no-ops. Anything
// else before the call yields an empty set.
func (r *Resolver) ResolvePreviousConstant(m *bytecode.Method, call int) strflow.CandidateSet {
	if m == nil || call <= 0 || call >= len(m.Code) || !m.Code[call].Op.IsInvoke() {
		return strflow.CandidateSet{}
	}
	for i := call - 1; i >= 0; i-- {
		in := m.Code[i]
		if in.Op == bytecode.LABEL || in.Op == bytecode.LINE || in.Op == bytecode.NOP {
			continue
		}
		if in.Op == bytecode.LDC && in.HasStr {
			return strflow.CandidateSet{{Value: in.Str, Provenance: strflow.Literal, Pos: in.Pos}}
		}
		break
	}
	return strflow.CandidateSet{}
}
