package utable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_InternAndLookup(t *testing.T) {
	t.Parallel()

	arena := NewArena(make([]byte, 64))

	off, err := arena.Intern("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", arena.Lookup(off))
}

func TestArena_InternDoesNotDedupe(t *testing.T) {
	t.Parallel()

	arena := NewArena(make([]byte, 64))

	off1, err := arena.Intern("same")
	require.NoError(t, err)
	off2, err := arena.Intern("same")
	require.NoError(t, err)
	assert.NotEqual(t, off1, off2)
	assert.Equal(t, "same", arena.Lookup(off1))
	assert.Equal(t, "same", arena.Lookup(off2))
}

func TestArena_InternDistinguishesDistinctStrings(t *testing.T) {
	t.Parallel()

	arena := NewArena(make([]byte, 64))

	off1, err := arena.Intern("alpha")
	require.NoError(t, err)
	off2, err := arena.Intern("beta")
	require.NoError(t, err)
	assert.NotEqual(t, off1, off2)
	assert.Equal(t, "alpha", arena.Lookup(off1))
	assert.Equal(t, "beta", arena.Lookup(off2))
}

func TestArena_OutOfMemory(t *testing.T) {
	t.Parallel()

	arena := NewArena(make([]byte, 12))

	_, err := arena.Intern("way too long for this tiny arena")
	assert.Error(t, err)
}

func TestArena_LookupOutOfRange(t *testing.T) {
	t.Parallel()

	arena := NewArena(make([]byte, 16))
	assert.Equal(t, "", arena.Lookup(1000))
}
