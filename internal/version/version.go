// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package version carries the build version stamped via -ldflags.
package version

// Version is the gateway build version.
var Version = "dev"
