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

package capcheck

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// An Issue is a kind of finding, with the explanation shown to users
type Issue struct {
	ID          string
	Title       string
	Explanation string
}

var (
	// UndeclaredCapability is reported by the syntax-tree checker
	UndeclaredCapability = Issue{
		ID:    "undeclared-capability",
		Title: "call requires a capability the manifest does not declare",
		Explanation: "The argument of this call can take a value that requires a capability, and neither the " +
			"capability nor a capability implying it is declared in the manifest. Declare the capability, or " +
			"restrict the values the argument can take.",
	}

	// UndeclaredCapabilityBytecode is the same issue found by the instruction-graph checker
	UndeclaredCapabilityBytecode = Issue{
		ID:    "undeclared-capability-bytecode",
		Title: "compiled call requires a capability the manifest does not declare",
		Explanation: "The compiled form of this call loads an argument value that requires a capability, and " +
			"the manifest does not declare it. Values are followed through local slots and the results of " +
			"functions of the same package.",
	}
)

var registry = map[string]Issue{
	UndeclaredCapability.ID:         UndeclaredCapability,
	UndeclaredCapabilityBytecode.ID: UndeclaredCapabilityBytecode,
}

// Issues returns the registered issues sorted by ID
func Issues() []Issue {
	ids := maps.Keys(registry)
	slices.Sort(ids)
	res := make([]Issue, len(ids))
	for i, id := range ids {
		res[i] = registry[id]
	}
	return res
}

// LookupIssue returns the issue with the given ID
func LookupIssue(id string) (Issue, bool) {
	issue, ok := registry[id]
	return issue, ok
}
