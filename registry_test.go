package packsync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackRegistryAdd(t *testing.T) {
	r := NewPackRegistry()
	require.NoError(t, r.AddPack(NewResourcePack("Vanilla", "http://x/a.zip", "", 0, false, "")))
	require.NoError(t, r.AddPack(NewResourcePack("hd", "http://x/hd.zip", "", 0, true, "pack.hd")))

	err := r.AddPack(NewResourcePack("VANILLA", "http://x/other.zip", "", 0, false, ""))
	var dup *DuplicateNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "VANILLA", dup.Name)

	assert.Error(t, r.AddPack(nil))
	assert.Equal(t, 2, r.Len())

	p, ok := r.PackByName("vanilla")
	require.True(t, ok)
	assert.Equal(t, "http://x/a.zip", p.URL())

	names := []string{}
	for _, p := range r.Packs() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"Vanilla", "hd"}, names)
}

func TestPackRegistryEmptyPack(t *testing.T) {
	r := NewPackRegistry()
	vanilla := NewResourcePack("vanilla", "http://x/a.zip", "", 0, false, "")
	require.NoError(t, r.AddPack(vanilla))

	err := r.SetEmptyPack(NewResourcePack("ghost", "u", "", 0, false, ""))
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Nil(t, r.EmptyPack())

	require.NoError(t, r.SetEmptyPack(NewResourcePack("VANILLA", "other", "", 0, false, "")))
	assert.Same(t, vanilla, r.EmptyPack(), "the registered pack is designated")
	assert.True(t, vanilla.IsEmpty(r))

	require.NoError(t, r.SetEmptyPack(nil))
	assert.Nil(t, r.EmptyPack())
	assert.False(t, vanilla.IsEmpty(r))
}

func TestPackRegistrySuggest(t *testing.T) {
	r := NewPackRegistry()
	require.NoError(t, r.AddPack(NewResourcePack("vanilla", "a", "", 0, false, "")))
	require.NoError(t, r.AddPack(NewResourcePack("HD", "b", "", 0, false, "")))

	assert.Equal(t, "vanilla", r.Suggest("vanila"))
	assert.Equal(t, "HD", r.Suggest("hd"))
	assert.Empty(t, r.Suggest("zzz"))
}

func TestPackRegistryWithReplaced(t *testing.T) {
	r := NewPackRegistry()
	vanilla := NewResourcePack("vanilla", "a", "", 0, false, "")
	require.NoError(t, r.AddPack(vanilla))
	require.NoError(t, r.SetEmptyPack(vanilla))

	updated := vanilla.Clone()
	updated.SetHash("0123456789abcdef0123456789abcdef01234567")
	c := r.withReplaced([]*ResourcePack{updated, NewResourcePack("unknown", "u", "", 0, false, "")})

	p, _ := c.PackByName("vanilla")
	assert.Same(t, updated, p)
	assert.Same(t, updated, c.EmptyPack())
	assert.Equal(t, 1, c.Len())

	p, _ = r.PackByName("vanilla")
	assert.Same(t, vanilla, p, "original registry is untouched")
}
