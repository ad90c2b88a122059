// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelfront/gateway/internal/apierror"
	"github.com/modelfront/gateway/internal/config"
)

func twoModelConfig() *config.ModelsConfig {
	return &config.ModelsConfig{
		DefaultModel: "m1",
		Models: []config.ModelSpec{
			{ID: "m1"},
			{ID: "m2"},
		},
	}
}

// stubFactory hands out unloaded stubs and records them per model id.
func stubFactory() (Factory, map[string]*StubBackend) {
	backends := make(map[string]*StubBackend)
	return func(spec config.ModelSpec) Backend {
		b := &StubBackend{Fallback: "out:" + spec.ID}
		backends[spec.ID] = b
		return b
	}, backends
}

func TestStart_EagerLoadsEverything(t *testing.T) {
	factory, backends := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeEager, factory, zap.NewNop())

	require.NoError(t, r.Start(context.Background()))
	require.True(t, backends["m1"].Loaded())
	require.True(t, backends["m2"].Loaded())
	require.ElementsMatch(t, []string{"m1", "m2"}, r.LoadedIDs())
}

func TestStart_EagerLoadFailure(t *testing.T) {
	factory, backends := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeEager, factory, zap.NewNop())
	backends["m1"].LoadErr = errors.New("weights missing")
	backends["m2"].LoadErr = errors.New("weights missing")

	require.Error(t, r.Start(context.Background()))
}

func TestStart_LazyLoadsNothing(t *testing.T) {
	factory, backends := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeLazy, factory, zap.NewNop())

	require.NoError(t, r.Start(context.Background()))
	require.False(t, backends["m1"].Loaded())
	require.False(t, r.Ready())
}

func TestGenerate_LazyLoadsOnFirstCall(t *testing.T) {
	factory, backends := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeLazy, factory, zap.NewNop())

	out, err := r.Generate(context.Background(), "m2", "hello", Params{})
	require.NoError(t, err)
	require.Equal(t, "out:m2", out)
	require.True(t, backends["m2"].Loaded())
	require.False(t, backends["m1"].Loaded(), "only the bound model loads")
}

func TestGenerate_OffModeFailsUntilAdminLoad(t *testing.T) {
	factory, backends := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeOff, factory, zap.NewNop())

	_, err := r.Generate(context.Background(), "m1", "hello", Params{})
	apiErr := apierror.From(err)
	require.Equal(t, apierror.CodeModelNotLoaded, apiErr.Code)
	require.Equal(t, 503, apiErr.Status)
	require.Zero(t, backends["m1"].Calls())

	require.NoError(t, r.AdminLoad(context.Background(), "m1"))
	out, err := r.Generate(context.Background(), "m1", "hello", Params{})
	require.NoError(t, err)
	require.Equal(t, "out:m1", out)
}

func TestGenerate_EmptyIDBindsDefault(t *testing.T) {
	factory, _ := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeLazy, factory, zap.NewNop())

	out, err := r.Generate(context.Background(), "", "hello", Params{})
	require.NoError(t, err)
	require.Equal(t, "out:m1", out)
}

func TestGenerate_UnknownModel(t *testing.T) {
	factory, _ := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeLazy, factory, zap.NewNop())

	_, err := r.Generate(context.Background(), "m9", "hello", Params{})
	require.Equal(t, apierror.CodeModelNotLoaded, apierror.From(err).Code)
}

func TestGenerate_LoadFailureMapsToModelNotLoaded(t *testing.T) {
	factory, backends := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeLazy, factory, zap.NewNop())
	backends["m1"].LoadErr = errors.New("weights missing")

	_, err := r.Generate(context.Background(), "m1", "hello", Params{})
	require.Equal(t, apierror.CodeModelNotLoaded, apierror.From(err).Code)
}

func TestPerModelLoadModeOverride(t *testing.T) {
	cfg := twoModelConfig()
	cfg.Models[1].LoadMode = config.LoadModeOff
	factory, backends := stubFactory()
	r := NewRegistry(cfg, config.LoadModeEager, factory, zap.NewNop())

	require.NoError(t, r.Start(context.Background()))
	require.True(t, backends["m1"].Loaded())
	require.False(t, backends["m2"].Loaded(), "off override wins over the eager default")

	_, err := r.Generate(context.Background(), "m2", "hello", Params{})
	require.Equal(t, apierror.CodeModelNotLoaded, apierror.From(err).Code)
}

func TestEnsureLoaded_DefaultModelOnly(t *testing.T) {
	factory, backends := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeLazy, factory, zap.NewNop())

	require.NoError(t, r.EnsureLoaded(context.Background()))
	require.True(t, backends["m1"].Loaded())
	require.False(t, backends["m2"].Loaded())
}

func TestEnsureLoaded_OffMode(t *testing.T) {
	factory, _ := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeOff, factory, zap.NewNop())

	err := r.EnsureLoaded(context.Background())
	require.Equal(t, apierror.CodeModelNotLoaded, apierror.From(err).Code)
}

func TestReadyAndIDs(t *testing.T) {
	factory, _ := stubFactory()
	r := NewRegistry(twoModelConfig(), config.LoadModeLazy, factory, zap.NewNop())

	require.Equal(t, "m1", r.DefaultID())
	require.Equal(t, []string{"m1", "m2"}, r.IDs())
	require.False(t, r.Ready())
	require.Empty(t, r.LoadedIDs())

	require.NoError(t, r.AdminLoad(context.Background(), "m2"))
	require.True(t, r.Ready())
	require.Equal(t, []string{"m2"}, r.LoadedIDs())
}

func TestEchoBackend(t *testing.T) {
	b := NewEchoBackend("m1")
	_, err := b.Generate(context.Background(), "hi", Params{})
	require.Error(t, err, "generate before load fails")

	require.NoError(t, b.EnsureLoaded(context.Background()))
	out, err := b.Generate(context.Background(), "hello world", Params{MaxNewTokens: 5})
	require.NoError(t, err)
	require.Equal(t, "[m1] hello", out)
}
