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

package strflow

import (
	"github.com/capscan/capscan/analysis/config"
)

// A Request holds the state of one top-level resolution. A new request is created for every resolved argument and
// dropped when the resolution returns.
type Request struct {
	Logger *config.LogGroup

	maxDepth int
	depth    int
	maxPaths int
	paths    int
	active   map[any]bool
}

// NewRequest returns a fresh request. Non-positive bounds are replaced by the defaults of package config.
func NewRequest(logger *config.LogGroup, maxDepth int, maxPaths int) *Request {
	if logger == nil {
		logger = config.Discard()
	}
	if maxDepth <= 0 {
		maxDepth = config.DefaultMaxTraceDepth
	}
	if maxPaths <= 0 {
		maxPaths = config.DefaultMaxPaths
	}
	return &Request{
		Logger:   logger,
		maxDepth: maxDepth,
		maxPaths: maxPaths,
		active:   map[any]bool{},
	}
}

// Descend starts a nested trace. It returns false, and the trace must not start, when the depth budget is spent.
// Every successful Descend must be matched by an Ascend.
func (r *Request) Descend() bool {
	if r.depth >= r.maxDepth {
		r.Logger.Debugf("trace depth %d reached, giving up on nested trace", r.maxDepth)
		return false
	}
	r.depth++
	return true
}

// Ascend ends a nested trace
func (r *Request) Ascend() {
	r.depth--
}

// EnterCall marks the callee as being traced. It returns false when the callee is already being traced by an
// enclosing call trace, which closes recursion cycles of any length.
func (r *Request) EnterCall(callee any) bool {
	if r.active[callee] {
		r.Logger.Tracef("call to %v is already being traced", callee)
		return false
	}
	r.active[callee] = true
	return true
}

// LeaveCall ends the trace of callee
func (r *Request) LeaveCall(callee any) {
	delete(r.active, callee)
}

// SpendPath consumes one unit of the path budget. It returns false once the budget is exhausted.
func (r *Request) SpendPath() bool {
	if r.paths >= r.maxPaths {
		return false
	}
	r.paths++
	if r.paths == r.maxPaths {
		r.Logger.Debugf("path budget of %d exhausted", r.maxPaths)
	}
	return true
}
