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

const (
	// DefaultMaxTraceDepth is the default bound on nested variable and call traces of one resolution request
	DefaultMaxTraceDepth = 16
	// DefaultMaxPaths is the default bound on the control-flow paths enumerated for one resolution request
	DefaultMaxPaths = 4096
)

// Capabilities required by the default rules
const (
	CapabilityNetworkTCP = "network.tcp"
	CapabilityNetworkUDP = "network.udp"
	CapabilityNetworkRaw = "network.raw"
	CapabilityUnixSocket = "network.unix"
)
