package settings

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_NewCopiesItsInput(t *testing.T) {
	t.Parallel()

	in := map[string]string{"A": "1"}
	env := New(in)
	in["A"] = "changed"
	in["B"] = "2"

	v, ok := env.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = env.Lookup("B")
	assert.False(t, ok)
}

func TestEnvironment_OverlayDerivesWithoutMutating(t *testing.T) {
	t.Parallel()

	base := New(map[string]string{"A": "1", "B": "2"})
	derived := base.Overlay(map[string]string{"B": "override", "C": "3"})

	v, _ := derived.Lookup("B")
	assert.Equal(t, "override", v)
	v, _ = derived.Lookup("C")
	assert.Equal(t, "3", v)

	// The base snapshot is untouched.
	v, _ = base.Lookup("B")
	assert.Equal(t, "2", v)
	_, ok := base.Lookup("C")
	assert.False(t, ok)
}

func TestEnvironment_OverlayDoesNotTouchProcessEnv(t *testing.T) {
	const key = "TAPROOT_OVERLAY_PROBE"
	require.NoError(t, os.Unsetenv(key))

	env := FromOS().Overlay(map[string]string{key: "set"})
	v, ok := env.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "set", v)

	_, present := os.LookupEnv(key)
	assert.False(t, present)
}

func TestEnvironment_KeysSorted(t *testing.T) {
	t.Parallel()

	env := New(map[string]string{"B": "", "A": "", "C": ""})
	assert.Equal(t, []string{"A", "B", "C"}, env.Keys())
	assert.Equal(t, 3, env.Len())
}
