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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type. For example, a valid config file is as follows:

	log-level: 4
	max-depth: 8
	manifest: capabilities.yaml
	rules:
	  - id: net-dial
	    package: ^net$
	    method: ^Dial$
	    values:
	      tcp: [network.tcp]
	      udp: [network.udp]
	  - id: provider-enabled
	    package: location
	    receiver: Manager
	    method: IsProviderEnabled
	    heuristic: true
	    values:
	      gps: [location.fine]

When the config has no rules, the rules returned by [DefaultRules] are used.

# Identifying code elements

The rules use [CodeIdentifier] to identify the called functions. An important feature of the code identifiers is that
the string specifications are seen as regexes if they can be compiled to regexes, otherwise they are strings.

# Manifest

The manifest file lists the capabilities declared by the analyzed program, and the implications between capabilities:

	declared: [location.fine]
	implies:
	  location.fine: [location.coarse]
*/
package config
