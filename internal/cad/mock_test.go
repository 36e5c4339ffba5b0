package cad

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMock(t *testing.T) *Mock {
	t.Helper()
	m := NewMock()
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Open(ctx, "bracket.FCStd"))
	return m
}

func TestMockSeedParameters(t *testing.T) {
	m := openMock(t)

	params, err := m.Parameters(context.Background())
	require.NoError(t, err)
	require.Len(t, params, 4)

	byName := map[string]float64{}
	for _, p := range params {
		byName[p.Name] = p.Value
		assert.Equal(t, "mm", p.Unit)
	}
	assert.Equal(t, 5.0, byName["Fillet_Radius"])
	assert.Equal(t, 100.0, byName["Length"])
	assert.Equal(t, 50.0, byName["Width"])
	assert.Equal(t, 30.0, byName["Height"])
}

func TestMockSetParameter(t *testing.T) {
	m := openMock(t)
	ctx := context.Background()

	require.NoError(t, m.SetParameter(ctx, "Fillet_Radius", 12.5))

	params, err := m.Parameters(ctx)
	require.NoError(t, err)
	for _, p := range params {
		if p.Name == "Fillet_Radius" {
			assert.Equal(t, 12.5, p.Value)
		}
	}

	var unknown *UnknownParameterError
	err = m.SetParameter(ctx, "Hole_Diameter", 4)
	require.ErrorAs(t, err, &unknown)
}

func TestMockExportWritesParametricSTL(t *testing.T) {
	m := openMock(t)
	ctx := context.Background()
	require.NoError(t, m.SetParameter(ctx, "Length", 20))
	require.NoError(t, m.SetParameter(ctx, "Width", 10))
	require.NoError(t, m.SetParameter(ctx, "Height", 5))
	require.NoError(t, m.Rebuild(ctx))

	path := filepath.Join(t.TempDir(), "trial_01_Length_20.stl")
	require.NoError(t, m.Export(ctx, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	assert.True(t, strings.HasPrefix(content, "solid "))
	assert.Equal(t, 12, strings.Count(content, "facet normal"))
	assert.Equal(t, 36, strings.Count(content, "vertex"))
	assert.Contains(t, content, "vertex 20 10 5")
}

func TestMockRequiresOpenDocument(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	assert.ErrorIs(t, m.Rebuild(ctx), ErrNotConnected)

	require.NoError(t, m.Connect(ctx))
	assert.ErrorIs(t, m.Rebuild(ctx), ErrNoDocument)
	assert.ErrorIs(t, m.SetParameter(ctx, "Length", 1), ErrNoDocument)
}

func TestMockFailureInjection(t *testing.T) {
	m := openMock(t)
	ctx := context.Background()

	m.RebuildErr = assert.AnError
	assert.ErrorIs(t, m.Rebuild(ctx), assert.AnError)

	m.ExportErr = assert.AnError
	assert.ErrorIs(t, m.Export(ctx, filepath.Join(t.TempDir(), "x.stl")), assert.AnError)
}
