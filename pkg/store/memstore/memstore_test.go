package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/i5heu/ouroboros-cascade/internal/testutil"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetElementJoinsEntry(t *testing.T) {
	ctx := context.Background()
	alice := testutil.NewAgent(t, 1)
	entry := testutil.AppEntry(t, "joined")
	create := alice.Create(t, entry, 1)

	s := New()
	missing, err := s.GetElement(ctx, create.HeaderHash())
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Put(ctx, create.SignedHeader, nil))
	el, err := s.GetElement(ctx, create.HeaderHash())
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Nil(t, el.Entry)

	require.NoError(t, s.Put(ctx, create.SignedHeader, &entry))
	el, err = s.GetElement(ctx, create.HeaderHash())
	require.NoError(t, err)
	require.NotNil(t, el.Entry)
	assert.Equal(t, entry.Hash(), el.Entry.Hash())
}

func TestPutElementGroup(t *testing.T) {
	ctx := context.Background()
	entry := testutil.AppEntry(t, "group")
	a := testutil.NewAgent(t, 1).Create(t, entry, 1)
	b := testutil.NewAgent(t, 2).Create(t, entry, 2)
	g, err := model.NewElementGroup([]model.SignedHeaderHashed{a.SignedHeader, b.SignedHeader}, entry)
	require.NoError(t, err)

	s := New()
	require.NoError(t, store.MergeGroup(ctx, s, s, g))

	headers, err := s.GetHeaders(ctx, entry.Hash())
	require.NoError(t, err)
	assert.Len(t, headers, 2)
	for _, h := range []model.Element{a, b} {
		el, err := s.GetElement(ctx, h.HeaderHash())
		require.NoError(t, err)
		require.NotNil(t, el)
		require.NotNil(t, el.Entry)
	}
}

func TestConcurrentMerges(t *testing.T) {
	ctx := context.Background()
	s := New()
	const writers = 8

	var elements []model.Element
	var entries []model.Entry
	for i := 0; i < writers; i++ {
		agent := testutil.NewAgent(t, byte(i+1))
		entry := testutil.AppEntry(t, string(rune('a'+i)))
		create := agent.Create(t, entry, model.Timestamp(i))
		elements = append(elements, create, agent.Delete(t, create, model.Timestamp(i+100)))
		entries = append(entries, entry)
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers*2)
	for w := 0; w < writers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			// every writer merges everything, in its own order
			for i := range elements {
				el := elements[(i+w)%len(elements)]
				if err := store.Merge(ctx, s, s, el); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, e := range entries {
		st, err := s.GetDhtStatus(ctx, e.Hash())
		require.NoError(t, err)
		assert.Equal(t, model.StatusDead, st)
		headers, err := s.GetHeaders(ctx, e.Hash())
		require.NoError(t, err)
		assert.Len(t, headers, 1)
	}
}
