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

// traceReturn returns the candidates of result index of m, over all the return instructions of m. A method already
// being traced by the request, or beyond the depth budget, yields nothing.
func (r *Resolver) traceReturn(m *bytecode.Method, index int, req *strflow.Request) []strflow.Candidate {
	if index >= len(m.Desc.Results) {
		return nil
	}
	if !req.EnterCall(m) {
		return nil
	}
	defer req.LeaveCall(m)
	if !req.Descend() {
		return nil
	}
	defer req.Ascend()

	cfg, err := r.cfg(m)
	if err != nil {
		req.Logger.Debugf("not tracing %s: %v", m, err)
		return nil
	}
	results := len(m.Desc.Results)
	var res []strflow.Candidate
	for i, in := range m.Code {
		if in.Op != bytecode.RETURN {
			continue
		}
		res = append(res, r.explore(cfg, i, func(s *pathState) entry { return s.operand(results, index) }, req)...)
	}
	req.Logger.Tracef("result %d of %s resolves to %s", index, m, strflow.Aggregate(res))
	return res
}
