// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package capability computes the effective capability set for a
// (deployment, model, policy) triple. Resolution is AND-only across the three
// layers: any layer can revoke a capability, none can grant one the others
// deny. Capabilities a layer does not mention default to allowed for the
// deployment and model layers; the policy layer contributes only when its
// snapshot matches the model (or is model-agnostic) and fails closed.
package capability

import (
	"net/http"

	"github.com/modelfront/gateway/internal/apierror"
	"github.com/modelfront/gateway/internal/config"
	"github.com/modelfront/gateway/internal/policy"
)

// Known capability names.
const (
	Generate = "generate"
	Extract  = "extract"
)

// Resolver computes effective capabilities. It is a pure function of its
// inputs; the only I/O is the policy snapshot read behind the loader's TTL
// cache.
type Resolver struct {
	deployment map[string]bool
	models     *config.ModelsConfig
	policy     *policy.Loader
}

// NewResolver builds a resolver over the deployment capability toggles, the
// models configuration and the policy loader.
func NewResolver(deployment map[string]bool, models *config.ModelsConfig, loader *policy.Loader) *Resolver {
	return &Resolver{deployment: deployment, models: models, policy: loader}
}

// deploymentAllows reports the deployment layer's verdict; absent means
// allowed.
func (r *Resolver) deploymentAllows(capability string) bool {
	v, ok := r.deployment[capability]
	return !ok || v
}

// Effective returns the merged capability map for the given model: deployment
// AND model-spec AND policy, per capability.
func (r *Resolver) Effective(modelID string) map[string]bool {
	merged := r.models.EffectiveCapabilities(modelID)
	if merged == nil {
		merged = map[string]bool{}
	}
	// Make sure the two core capabilities always appear in the map the
	// client sees, even when no layer mentions them.
	for _, name := range []string{Generate, Extract} {
		if _, ok := merged[name]; !ok {
			merged[name] = true
		}
	}
	for name := range merged {
		merged[name] = merged[name] && r.deploymentAllows(name)
	}
	if r.policy.Enabled() {
		snap := r.policy.Load()
		if snap.DeniesExtract(modelID) {
			merged[Extract] = false
		}
	}
	return merged
}

// Check verifies that the named capability is effective for modelID.
// A deployment denial maps to capability_disabled (501); a model or policy
// denial maps to capability_not_supported (400) carrying the merged map so
// the client can see what the model does support.
func (r *Resolver) Check(modelID, name string) error {
	if !r.deploymentAllows(name) {
		return apierror.Newf(apierror.CodeCapabilityDisabled, http.StatusNotImplemented,
			"capability %q is disabled for this deployment", name)
	}
	merged := r.Effective(modelID)
	if !merged[name] {
		return apierror.Newf(apierror.CodeCapabilityNotSupported, http.StatusBadRequest,
			"model %q does not support capability %q", modelID, name).
			WithExtra(map[string]any{"model_capabilities": merged})
	}
	return nil
}
