package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taproot/internal/contract"
	"github.com/vk/taproot/internal/step"
)

type payload struct {
	N int `cty:"n" json:"n"`
}

type label struct {
	Tag string `cty:"tag" json:"tag"`
}

var (
	payloadContract = contract.MustJSON[payload]("payload")
	labelContract   = contract.MustJSON[label]("label")
)

func noop(ctx context.Context, req *step.Request) (any, error) {
	return payload{}, nil
}

func source(name string) *step.Definition {
	return step.MustNew(name, payloadContract, noop)
}

func consumer(name string) *step.Definition {
	return step.MustNew(name, payloadContract, noop, step.WithInput(payloadContract))
}

func TestGraph_Chaining(t *testing.T) {
	t.Parallel()

	g := New()
	a, b, c := source("A"), consumer("B"), consumer("C")

	chain, err := g.Start(a)
	require.NoError(t, err)
	chain, err = chain.Then(b)
	require.NoError(t, err)
	chain, err = chain.Then(c)
	require.NoError(t, err)

	assert.Same(t, c, chain.Tip())
	assert.Len(t, g.Steps(), 3)
	require.Len(t, g.Edges(), 2)
	assert.Same(t, a, g.Edges()[0].Producer)
	assert.Same(t, b, g.Edges()[0].Consumer)
}

func TestGraph_ConnectRejectsMismatch(t *testing.T) {
	t.Parallel()

	g := New()
	producer := source("A")
	wantsLabels := step.MustNew("B", labelContract, noop, step.WithInput(labelContract))

	_, err := g.Connect(producer, wantsLabels)
	var mismatch *contract.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "A", mismatch.Producer)
	assert.Equal(t, "B", mismatch.Consumer)
}

func TestGraph_ConnectRejectsSourceConsumer(t *testing.T) {
	t.Parallel()

	g := New()
	_, err := g.Connect(source("A"), source("B"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source")
}

func TestGraph_DuplicateEdgeIsIgnored(t *testing.T) {
	t.Parallel()

	g := New()
	a, b := source("A"), consumer("B")
	_, err := g.Connect(a, b)
	require.NoError(t, err)
	_, err = g.Connect(a, b)
	require.NoError(t, err)

	assert.Len(t, g.Edges(), 1)
}

func TestGraph_DuplicateNameRejected(t *testing.T) {
	t.Parallel()

	g := New()
	require.NoError(t, g.Add(source("A")))

	err := g.Add(source("A"))
	var dup *DuplicateStepError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "A", dup.Name)
}

func TestGraph_SameInstanceAddedTwice(t *testing.T) {
	t.Parallel()

	g := New()
	a := source("A")
	require.NoError(t, g.Add(a))
	require.NoError(t, g.Add(a))
	assert.Len(t, g.Steps(), 1)
}
