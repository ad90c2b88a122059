// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package capability

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modelfront/gateway/internal/apierror"
	"github.com/modelfront/gateway/internal/config"
	"github.com/modelfront/gateway/internal/policy"
)

func testModels(t *testing.T, specCaps map[string]bool) *config.ModelsConfig {
	t.Helper()
	cfg := &config.ModelsConfig{
		DefaultModel: "m1",
		Models: []config.ModelSpec{
			{ID: "m1", Capabilities: specCaps},
			{ID: "m2"},
		},
	}
	cfg.Defaults.Capabilities = map[string]bool{"generate": true, "extract": true}
	return cfg
}

func noPolicy() *policy.Loader { return policy.NewLoader("", 0) }

func policyFrom(t *testing.T, content string) *policy.Loader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decision.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return policy.NewLoader(path, 0)
}

func TestEffective_AllLayersAllow(t *testing.T) {
	r := NewResolver(map[string]bool{"generate": true, "extract": true}, testModels(t, nil), noPolicy())
	caps := r.Effective("m1")
	require.True(t, caps["generate"])
	require.True(t, caps["extract"])
}

func TestEffective_ModelOverrideWins(t *testing.T) {
	r := NewResolver(map[string]bool{}, testModels(t, map[string]bool{"extract": false}), noPolicy())
	caps := r.Effective("m1")
	require.True(t, caps["generate"])
	require.False(t, caps["extract"])

	// m2 has no override, so the defaults apply.
	require.True(t, r.Effective("m2")["extract"])
}

func TestEffective_DeploymentRevokes(t *testing.T) {
	r := NewResolver(map[string]bool{"extract": false}, testModels(t, nil), noPolicy())
	require.False(t, r.Effective("m1")["extract"])
}

func TestEffective_PolicyRevokesButNeverGrants(t *testing.T) {
	models := testModels(t, map[string]bool{"extract": false})
	r := NewResolver(map[string]bool{}, models, policyFrom(t, `{"enable_extract": true}`))
	require.False(t, r.Effective("m1")["extract"], "policy cannot grant what the model denies")

	r = NewResolver(map[string]bool{}, testModels(t, nil), policyFrom(t, `{"enable_extract": false}`))
	require.False(t, r.Effective("m1")["extract"])
}

func TestEffective_FailClosedPolicy(t *testing.T) {
	r := NewResolver(map[string]bool{}, testModels(t, nil),
		policy.NewLoader(filepath.Join(t.TempDir(), "missing.json"), 0))
	require.False(t, r.Effective("m1")["extract"])
	require.True(t, r.Effective("m1")["generate"], "policy governs only extract")
}

func TestCheck_DeploymentDenial(t *testing.T) {
	r := NewResolver(map[string]bool{"extract": false}, testModels(t, nil), noPolicy())
	err := r.Check("m1", Extract)
	require.Error(t, err)

	apiErr := apierror.From(err)
	require.Equal(t, apierror.CodeCapabilityDisabled, apiErr.Code)
	require.Equal(t, http.StatusNotImplemented, apiErr.Status)
}

func TestCheck_ModelDenial(t *testing.T) {
	r := NewResolver(map[string]bool{}, testModels(t, map[string]bool{"extract": false}), noPolicy())
	err := r.Check("m1", Extract)
	require.Error(t, err)

	apiErr := apierror.From(err)
	require.Equal(t, apierror.CodeCapabilityNotSupported, apiErr.Code)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)

	caps, ok := apiErr.Extra["model_capabilities"].(map[string]bool)
	require.True(t, ok)
	require.False(t, caps["extract"])
}

func TestCheck_PolicyDenialIsModelScoped(t *testing.T) {
	r := NewResolver(map[string]bool{}, testModels(t, nil),
		policyFrom(t, `{"enable_extract": false, "model_id": "m1"}`))

	err := r.Check("m1", Extract)
	require.Equal(t, apierror.CodeCapabilityNotSupported, apierror.From(err).Code)

	require.NoError(t, r.Check("m2", Extract))
}

func TestCheck_Allowed(t *testing.T) {
	r := NewResolver(map[string]bool{"generate": true}, testModels(t, nil), noPolicy())
	require.NoError(t, r.Check("m1", Generate))
}
