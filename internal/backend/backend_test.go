package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vk/taproot/internal/contract"
	"github.com/vk/taproot/internal/pipeline"
	"github.com/vk/taproot/internal/step"
)

type doc struct {
	ID string `cty:"id" json:"id"`
}

var docsContract = contract.MustJSON[[]doc]("docs")

func noop(ctx context.Context, req *step.Request) (any, error) {
	return nil, nil
}

func sourceStep(name string) *step.Definition {
	return step.MustNew(name, docsContract, noop)
}

func consumerStep(name string) *step.Definition {
	return step.MustNew(name, docsContract, noop, step.WithInput(docsContract))
}

// diamond builds Fetch -> (Clean, Split) -> Merge and resolves it.
func diamond(t *testing.T) *pipeline.Resolved {
	t.Helper()
	g := pipeline.New()
	fetch := sourceStep("Fetch")
	clean := consumerStep("Clean")
	split := consumerStep("Split")
	merge := consumerStep("Merge")

	for _, edge := range [][2]*step.Definition{
		{fetch, clean}, {fetch, split}, {clean, merge}, {split, merge},
	} {
		_, err := g.Connect(edge[0], edge[1])
		require.NoError(t, err)
	}
	r, err := g.Resolve(merge)
	require.NoError(t, err)
	return r
}

// linear builds Fetch -> Clean and resolves it.
func linear(t *testing.T) *pipeline.Resolved {
	t.Helper()
	g := pipeline.New()
	fetch := sourceStep("Fetch")
	clean := consumerStep("Clean")
	_, err := g.Connect(fetch, clean)
	require.NoError(t, err)
	r, err := g.Resolve(clean)
	require.NoError(t, err)
	return r
}

// parseYAML round-trips generated text into a generic document.
func parseYAML(t *testing.T, text string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(text), &doc))
	return doc
}

func section(t *testing.T, doc map[string]any, keys ...string) map[string]any {
	t.Helper()
	cur := doc
	for _, key := range keys {
		next, ok := cur[key].(map[string]any)
		require.True(t, ok, "missing section %q", key)
		cur = next
	}
	return cur
}
