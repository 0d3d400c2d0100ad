package packsync

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// netherCatalog has vanilla everywhere and hd for holders of pack.hd in the nether.
func netherCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat := NewCatalog()
	require.NoError(t, cat.Packs.AddPack(NewResourcePack("vanilla", "http://x/a.zip", "", 15, false, "")))
	require.NoError(t, cat.Packs.AddPack(NewResourcePack("hd", "http://x/hd.zip", "", 34, true, "pack.hd")))
	require.NoError(t, cat.Packs.AddPack(NewResourcePack("joke", "http://x/joke.zip", "", 15, false, "")))
	require.NoError(t, cat.Packs.AddPack(NewResourcePack("blank", "http://x/blank.zip", "", 1, false, "")))

	nether := NewPackAssignment("nether")
	nether.SetPack("vanilla")
	nether.AddSecondary(PackEntry{Pack: "hd"})
	cat.Assignments.AddAssignment(nether)

	global := NewPackAssignment(GlobalScope)
	global.SetPack("joke")
	cat.Assignments.SetGlobalAssignment(global)
	return cat
}

func perms(granted ...string) func(string) bool {
	return func(p string) bool {
		for _, g := range granted {
			if g == p {
				return true
			}
		}
		return false
	}
}

func input(scope string, hasPermission func(string) bool) ResolveInput {
	return ResolveInput{
		Player:        Player{ID: uuid.New(), Name: "Steve"},
		Scope:         scope,
		HasPermission: hasPermission,
		ClientFormat:  -1,
		Now:           time.Unix(1000, 0),
	}
}

func TestResolveNetherScenario(t *testing.T) {
	cat := netherCatalog(t)

	res := cat.Resolve(input("nether", perms()))
	require.NotNil(t, res.Pack)
	assert.Equal(t, "vanilla", res.Pack.Name())
	assert.Equal(t, SourceScope, res.Source)

	res = cat.Resolve(input("nether", perms("pack.hd")))
	require.NotNil(t, res.Pack)
	assert.Equal(t, "hd", res.Pack.Name())
	assert.Equal(t, "nether", res.Assignment.Name())
}

func TestResolveFallsToGlobal(t *testing.T) {
	cat := netherCatalog(t)

	for _, scope := range []string{"", "lobby"} {
		res := cat.Resolve(input(scope, perms()))
		require.NotNil(t, res.Pack)
		assert.Equal(t, "joke", res.Pack.Name())
		assert.Equal(t, SourceGlobal, res.Source)
	}
}

func TestResolveOverridePrecedence(t *testing.T) {
	cat := netherCatalog(t)

	for _, scope := range []string{"nether", "lobby", ""} {
		for _, p := range []func(string) bool{perms(), perms("pack.hd")} {
			in := input(scope, p)
			in.Override = &Override{Pack: "blank"}
			in.StoredPack = "vanilla"
			res := cat.Resolve(in)
			require.NotNil(t, res.Pack)
			assert.Equal(t, "blank", res.Pack.Name(), "scope %q", scope)
			assert.Equal(t, SourceOverride, res.Source)
		}
	}
}

func TestResolveOverrideExpiry(t *testing.T) {
	cat := netherCatalog(t)
	start := time.Unix(1000, 0)
	override := &Override{Pack: "joke", Expires: start.Add(30 * time.Second)}

	in := input("nether", perms())
	in.Override = override
	in.Now = start
	assert.Equal(t, "joke", cat.Resolve(in).Pack.Name())

	in.Now = start.Add(31 * time.Second)
	res := cat.Resolve(in)
	assert.Equal(t, "vanilla", res.Pack.Name())
	assert.Equal(t, SourceScope, res.Source)
}

func TestResolveStoredPriority(t *testing.T) {
	tests := []struct {
		priority StoredPackPriority
		scope    string
		want     string
		source   Source
	}{
		{StoredPackOverride, "nether", "blank", SourceStored},
		{StoredPackFallback, "nether", "vanilla", SourceScope},
		{StoredPackOff, "nether", "vanilla", SourceScope},
	}
	for _, tt := range tests {
		t.Run(tt.priority.String(), func(t *testing.T) {
			cat := netherCatalog(t)
			cat.Settings.StoredPriority = tt.priority
			in := input(tt.scope, perms())
			in.StoredPack = "blank"
			res := cat.Resolve(in)
			assert.Equal(t, tt.want, res.Pack.Name())
			assert.Equal(t, tt.source, res.Source)
		})
	}

	t.Run("fallback below global", func(t *testing.T) {
		cat := netherCatalog(t)
		cat.Settings.StoredPriority = StoredPackFallback
		cat.Assignments.SetGlobalAssignment(nil)
		in := input("lobby", perms())
		in.StoredPack = "blank"
		res := cat.Resolve(in)
		assert.Equal(t, "blank", res.Pack.Name())
		assert.Equal(t, SourceStored, res.Source)
	})

	t.Run("restricted stored pack needs permission", func(t *testing.T) {
		cat := netherCatalog(t)
		in := input("lobby", perms())
		in.StoredPack = "hd"
		assert.Equal(t, "joke", cat.Resolve(in).Pack.Name())

		in.HasPermission = perms("pack.hd")
		assert.Equal(t, "hd", cat.Resolve(in).Pack.Name())
	})
}

func TestResolveLastApplied(t *testing.T) {
	cat := netherCatalog(t)
	in := input("lobby", perms())
	in.LastApplied = "vanilla"
	res := cat.Resolve(in)
	assert.Equal(t, "joke", res.Pack.Name(), "the global assignment outranks the last applied pack")
	assert.Equal(t, SourceGlobal, res.Source)

	cat.Assignments.SetGlobalAssignment(nil)
	blank, _ := cat.Packs.PackByName("blank")
	require.NoError(t, cat.Packs.SetEmptyPack(blank))
	res = cat.Resolve(in)
	assert.Equal(t, "vanilla", res.Pack.Name(), "the last applied pack outranks the empty pack")
	assert.Equal(t, SourceLastApplied, res.Source)

	cat.Settings.StoredPriority = StoredPackFallback
	in.StoredPack = "joke"
	assert.Equal(t, "joke", cat.Resolve(in).Pack.Name(), "a stored fallback outranks the last applied pack")

	in.StoredPack = ""
	in.LastApplied = "hd"
	res = cat.Resolve(in)
	assert.Equal(t, "blank", res.Pack.Name(), "a restricted last applied pack needs permission")
	assert.Equal(t, SourceEmpty, res.Source)
}

func TestResolveFormatClamp(t *testing.T) {
	cat := netherCatalog(t)
	in := input("nether", perms("pack.hd"))
	in.ClientFormat = 15

	res := cat.Resolve(in)
	assert.Equal(t, "hd", res.Pack.Name())
	assert.Equal(t, 15, res.Format)
	assert.Equal(t, 34, res.Pack.Format(), "the registered pack keeps its format")

	in.ClientFormat = -1
	assert.Equal(t, 34, cat.Resolve(in).Format)

	in.ClientFormat = 55
	assert.Equal(t, 34, cat.Resolve(in).Format)
}

func TestResolveEmptyAndNone(t *testing.T) {
	cat := netherCatalog(t)
	cat.Assignments.SetGlobalAssignment(nil)

	res := cat.Resolve(input("lobby", perms()))
	assert.Nil(t, res.Pack)
	assert.Equal(t, SourceNone, res.Source)

	blank, _ := cat.Packs.PackByName("blank")
	require.NoError(t, cat.Packs.SetEmptyPack(blank))
	res = cat.Resolve(input("lobby", perms()))
	assert.Equal(t, "blank", res.Pack.Name())
	assert.Equal(t, SourceEmpty, res.Source)
}

func TestResolveRestrictedDefault(t *testing.T) {
	cat := netherCatalog(t)
	end := NewPackAssignment("end")
	end.SetPack("hd")
	cat.Assignments.AddAssignment(end)

	assert.Equal(t, "joke", cat.Resolve(input("end", perms())).Pack.Name())
	assert.Equal(t, "hd", cat.Resolve(input("end", perms("pack.hd"))).Pack.Name())
}

func TestResolveEntryPermission(t *testing.T) {
	cat := netherCatalog(t)
	a := NewPackAssignment("arena")
	a.SetPack("vanilla")
	a.AddSecondary(PackEntry{Pack: "joke", Permission: "arena.fun"})
	a.AddSecondary(PackEntry{Pack: "blank"})
	cat.Assignments.AddAssignment(a)

	assert.Equal(t, "joke", cat.Resolve(input("arena", perms("arena.fun"))).Pack.Name())
	assert.Equal(t, "blank", cat.Resolve(input("arena", perms())).Pack.Name(), "unrestricted entry without permission applies")
}

func TestResolveUnknownReference(t *testing.T) {
	cat := netherCatalog(t)
	a := NewPackAssignment("typo")
	a.SetPack("vanila")
	cat.Assignments.AddAssignment(a)

	res := cat.Resolve(input("typo", perms()))
	assert.Equal(t, "joke", res.Pack.Name(), "unknown reference is an absent rule")
	require.Len(t, res.Warnings, 1)

	var ref *UnknownPackReferenceError
	require.True(t, errors.As(res.Warnings[0], &ref))
	assert.Equal(t, "typo", ref.Assignment)
	assert.Equal(t, "vanila", ref.Pack)
	assert.Equal(t, "vanilla", ref.Suggestion)
	assert.Contains(t, ref.Error(), `did you mean "vanilla"`)
}

func TestParseStoredPackPriority(t *testing.T) {
	for in, want := range map[string]StoredPackPriority{
		"":          StoredPackOverride,
		"Override":  StoredPackOverride,
		"fallback":  StoredPackFallback,
		" off ":     StoredPackOff,
		"none":      StoredPackOff,
	} {
		got, err := ParseStoredPackPriority(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%q", in)
	}
	_, err := ParseStoredPackPriority("sometimes")
	assert.Error(t, err)
}
