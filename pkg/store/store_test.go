package store_test

import (
	"context"
	"testing"

	"github.com/i5heu/ouroboros-cascade/internal/testutil"
	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
	"github.com/i5heu/ouroboros-cascade/pkg/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func merge(t *testing.T, s *memstore.Store, els ...model.Element) {
	t.Helper()
	for _, el := range els {
		require.NoError(t, store.Merge(context.Background(), s, s, el))
	}
}

func status(t *testing.T, r store.MetadataReader, e holohash.EntryHash) model.EntryDhtStatus {
	t.Helper()
	st, err := r.GetDhtStatus(context.Background(), e)
	require.NoError(t, err)
	return st
}

func TestDeriveStatus(t *testing.T) {
	ctx := context.Background()
	alice := testutil.NewAgent(t, 1)
	bob := testutil.NewAgent(t, 2)
	entry := testutil.AppEntry(t, "status")

	s := memstore.New()
	assert.Equal(t, model.StatusDead, status(t, s, entry.Hash()), "no headers")

	c1 := alice.Create(t, entry, 10)
	c2 := bob.Create(t, entry, 20)
	merge(t, s, c1, c2)
	assert.Equal(t, model.StatusLive, status(t, s, entry.Hash()))

	merge(t, s, alice.Delete(t, c1, 30))
	assert.Equal(t, model.StatusLive, status(t, s, entry.Hash()), "c2 still live")

	oldest, ok, err := store.OldestLiveHeader(ctx, s, entry.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c2.HeaderHash(), oldest.HeaderHash)

	merge(t, s, bob.Delete(t, c2, 40))
	assert.Equal(t, model.StatusDead, status(t, s, entry.Hash()))

	deletes, err := s.GetDeletesOnEntry(ctx, entry.Hash())
	require.NoError(t, err)
	assert.Len(t, deletes, 2)
}

// newestFirst returns headers in reverse time order.
type newestFirst struct {
	*memstore.Store
}

func (n newestFirst) GetHeaders(ctx context.Context, e holohash.EntryHash) ([]model.TimedHeaderHash, error) {
	hs, err := n.Store.GetHeaders(ctx, e)
	for i, j := 0, len(hs)-1; i < j; i, j = i+1, j-1 {
		hs[i], hs[j] = hs[j], hs[i]
	}
	return hs, err
}

func TestOldestLiveHeaderIgnoresReaderOrder(t *testing.T) {
	alice := testutil.NewAgent(t, 1)
	bob := testutil.NewAgent(t, 2)
	carol := testutil.NewAgent(t, 3)
	entry := testutil.AppEntry(t, "order")
	c1 := alice.Create(t, entry, 10)
	c2 := bob.Create(t, entry, 20)
	c3 := carol.Create(t, entry, 30)
	s := memstore.New()
	merge(t, s, c3, c1, c2, alice.Delete(t, c1, 40))

	oldest, ok, err := store.OldestLiveHeader(context.Background(), newestFirst{s}, entry.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c2.HeaderHash(), oldest.HeaderHash)
}

func TestStatusOverride(t *testing.T) {
	ctx := context.Background()
	alice := testutil.NewAgent(t, 1)
	entry := testutil.AppEntry(t, "override")
	s := memstore.New()
	merge(t, s, alice.Create(t, entry, 1))

	require.NoError(t, s.RegisterStatus(ctx, entry.Hash(), model.StatusRejected))
	assert.Equal(t, model.StatusRejected, status(t, s, entry.Hash()))

	require.NoError(t, s.RegisterStatus(ctx, entry.Hash(), model.StatusLive))
	assert.Equal(t, model.StatusLive, status(t, s, entry.Hash()))
}

func TestHasEntryMetadata(t *testing.T) {
	ctx := context.Background()
	alice := testutil.NewAgent(t, 1)
	entry := testutil.AppEntry(t, "known")
	s := memstore.New()

	known, err := s.HasEntryMetadata(ctx, entry.Hash())
	require.NoError(t, err)
	assert.False(t, known)

	require.NoError(t, s.RegisterStatus(ctx, entry.Hash(), model.StatusPending))
	known, err = s.HasEntryMetadata(ctx, entry.Hash())
	require.NoError(t, err)
	assert.True(t, known)

	other := testutil.AppEntry(t, "other")
	merge(t, s, alice.Create(t, other, 1))
	known, err = s.HasEntryMetadata(ctx, other.Hash())
	require.NoError(t, err)
	assert.True(t, known)
}

func TestIntegrateRegistersOps(t *testing.T) {
	ctx := context.Background()
	alice := testutil.NewAgent(t, 1)
	entry := testutil.AppEntry(t, "v1")
	next := testutil.AppEntry(t, "v2")
	s := memstore.New()

	create := alice.Create(t, entry, 1)
	update := alice.Update(t, create, next, 2)
	merge(t, s, create, update)

	ok, err := s.HasRegisteredStoreElement(ctx, update.HeaderHash())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasRegisteredStoreEntry(ctx, next.Hash(), update.HeaderHash())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasRegisteredStoreEntry(ctx, entry.Hash(), update.HeaderHash())
	require.NoError(t, err)
	assert.False(t, ok)

	onEntry, err := s.GetUpdates(ctx, holohash.EntryAddress(entry.Hash()))
	require.NoError(t, err)
	require.Len(t, onEntry, 1)
	assert.Equal(t, update.HeaderHash(), onEntry[0].HeaderHash)

	onHeader, err := s.GetUpdates(ctx, holohash.HeaderAddress(create.HeaderHash()))
	require.NoError(t, err)
	assert.Equal(t, onEntry, onHeader)
}

func TestRegisterRawOnHeaderRejectsNewEntryHeader(t *testing.T) {
	s := memstore.New()
	h := holohash.HashContent[holohash.Header]([]byte("h"))
	err := s.RegisterRawOnHeader(context.Background(), h, store.NewEntryHeaderVal(model.TimedHeaderHash{HeaderHash: h}))
	assert.ErrorIs(t, err, store.ErrInvalidSysMeta)
}

func TestLayeredUnion(t *testing.T) {
	ctx := context.Background()
	alice := testutil.NewAgent(t, 1)
	entry := testutil.AppEntry(t, "layered")
	cache, vault := memstore.New(), memstore.New()

	create := alice.Create(t, entry, 5)
	merge(t, vault, create)
	merge(t, cache, alice.Delete(t, create, 6))

	assert.Equal(t, model.StatusLive, status(t, vault, entry.Hash()))
	assert.Equal(t, model.StatusDead, status(t, store.Layered(cache, vault), entry.Hash()))

	require.NoError(t, cache.RegisterStatus(ctx, entry.Hash(), model.StatusConflict))
	require.NoError(t, vault.RegisterStatus(ctx, entry.Hash(), model.StatusPurged))
	assert.Equal(t, model.StatusConflict, status(t, store.Layered(cache, vault), entry.Hash()))

	elements := store.LayeredElementReader(cache, vault)
	el, err := elements.GetElement(ctx, create.HeaderHash())
	require.NoError(t, err)
	require.NotNil(t, el)
	require.NotNil(t, el.Entry)
	assert.Equal(t, entry.Hash(), el.Entry.Hash())
}

func TestLayeredLinks(t *testing.T) {
	ctx := context.Background()
	alice := testutil.NewAgent(t, 1)
	base := testutil.AppEntry(t, "base").Hash()
	target := testutil.AppEntry(t, "target").Hash()
	cache, vault := memstore.New(), memstore.New()

	l1 := alice.CreateLink(t, base, target, 0, "a", 1)
	l2 := alice.CreateLink(t, base, target, 0, "b", 2)
	merge(t, vault, l1, l2)
	merge(t, cache, l2, alice.DeleteLink(t, l1, 3))

	layered := store.Layered(cache, vault)
	all, err := layered.GetLinksAll(ctx, model.LinkKeyBase(base))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, l1.HeaderHash(), all[0].LinkAddHash)

	live, err := layered.GetLinks(ctx, model.LinkKeyBase(base))
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, l2.HeaderHash(), live[0].LinkAddHash)

	vaultLive, err := vault.GetLinks(ctx, model.LinkKeyBase(base))
	require.NoError(t, err)
	assert.Len(t, vaultLive, 2)
}

// Merging any sequence of elements twice leaves the store as merging it
// once does.
func TestMergeIdempotentProperty(t *testing.T) {
	alice := testutil.NewAgent(t, 1)
	bob := testutil.NewAgent(t, 2)
	entry := testutil.AppEntry(t, "idem")
	base := testutil.AppEntry(t, "idem-base").Hash()

	c1 := alice.Create(t, entry, 10)
	c2 := bob.Create(t, entry, 10)
	link := alice.CreateLink(t, base, entry.Hash(), 1, "x", 11)
	pool := []model.Element{
		c1,
		c2,
		alice.Delete(t, c1, 12),
		bob.Delete(t, c2, 13),
		alice.Update(t, c1, testutil.AppEntry(t, "idem-2"), 14),
		link,
		alice.DeleteLink(t, link, 15),
	}

	type snapshot struct {
		status  model.EntryDhtStatus
		headers []model.TimedHeaderHash
		deletes []model.TimedHeaderHash
		links   []model.LinkMetaVal
	}
	snap := func(t *rapid.T, s *memstore.Store) snapshot {
		ctx := context.Background()
		var sn snapshot
		var err error
		if sn.status, err = s.GetDhtStatus(ctx, entry.Hash()); err != nil {
			t.Fatal(err)
		}
		if sn.headers, err = s.GetHeaders(ctx, entry.Hash()); err != nil {
			t.Fatal(err)
		}
		if sn.deletes, err = s.GetDeletesOnEntry(ctx, entry.Hash()); err != nil {
			t.Fatal(err)
		}
		if sn.links, err = s.GetLinks(ctx, model.LinkKeyBase(base)); err != nil {
			t.Fatal(err)
		}
		return sn
	}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		picks := rapid.SliceOf(rapid.IntRange(0, len(pool)-1)).Draw(t, "picks")

		once, twice := memstore.New(), memstore.New()
		for _, i := range picks {
			if err := store.Merge(ctx, once, once, pool[i]); err != nil {
				t.Fatal(err)
			}
		}
		for round := 0; round < 2; round++ {
			for _, i := range picks {
				if err := store.Merge(ctx, twice, twice, pool[i]); err != nil {
					t.Fatal(err)
				}
			}
		}

		a, b := snap(t, once), snap(t, twice)
		if a.status != b.status {
			t.Fatalf("status %s != %s", a.status, b.status)
		}
		if len(a.headers) != len(b.headers) || len(a.deletes) != len(b.deletes) || len(a.links) != len(b.links) {
			t.Fatalf("metadata differs: %+v vs %+v", a, b)
		}
		for i := range a.headers {
			if a.headers[i] != b.headers[i] {
				t.Fatalf("header %d differs", i)
			}
		}
	})
}
