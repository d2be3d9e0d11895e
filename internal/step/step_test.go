package step

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taproot/internal/contract"
)

type doc struct {
	ID string `cty:"id" json:"id"`
}

var docContract = contract.MustJSON[doc]("doc")

func run(ctx context.Context, req *Request) (any, error) { return doc{}, nil }

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	t.Run("requires a name", func(t *testing.T) {
		t.Parallel()
		_, err := New("", docContract, run)
		require.Error(t, err)
	})

	t.Run("requires an output contract", func(t *testing.T) {
		t.Parallel()
		_, err := New("Fetch", nil, run)
		require.Error(t, err)
	})

	t.Run("requires a run function", func(t *testing.T) {
		t.Parallel()
		_, err := New("Fetch", docContract, nil)
		require.Error(t, err)
	})
}

func TestMustNew_PanicsOnInvalid(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		MustNew("", docContract, run)
	})
}

func TestDefinition_Accessors(t *testing.T) {
	t.Parallel()

	src := MustNew("Fetch", docContract, run)
	assert.True(t, src.IsSource())
	assert.False(t, src.HasSettings())
	assert.Nil(t, src.Input())
	assert.Same(t, docContract, src.Output().(*contract.JSONCodec[doc]))

	type cfg struct{ URL string }
	sink := MustNew("Clean", docContract, run,
		WithInput(docContract),
		WithSettings(func() any { return &cfg{} }),
	)
	assert.False(t, sink.IsSource())
	assert.True(t, sink.HasSettings())
	require.IsType(t, &cfg{}, sink.NewSettings())
}

func TestDefinition_OutputDir(t *testing.T) {
	t.Parallel()

	d := MustNew("Fetch", docContract, run)
	assert.Equal(t, filepath.Join("data", "Fetch"), d.OutputDir("data"))
}

func TestDefinition_Renamed(t *testing.T) {
	t.Parallel()

	base := MustNew("Transform", docContract, run, WithInput(docContract))
	inst := base.Renamed("clean")

	assert.Equal(t, "clean", inst.Name())
	assert.Equal(t, "Transform", base.Name())
	assert.NotSame(t, base, inst)
	assert.Same(t, base.Input(), inst.Input())
}
