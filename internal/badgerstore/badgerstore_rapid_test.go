package badgerstore

import (
	"context"
	"os"
	"testing"

	"github.com/i5heu/ouroboros-cascade/internal/testutil"
	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
	"github.com/i5heu/ouroboros-cascade/pkg/store/memstore"
	"pgregory.net/rapid"
)

// fixture is a small chain universe the state machine picks from.
type fixture struct {
	elements []model.Element
	entries  []holohash.EntryHash
	base     holohash.EntryHash
}

func newFixture(t *testing.T) fixture {
	alice := testutil.NewAgent(t, 1)
	bob := testutil.NewAgent(t, 2)
	e1 := testutil.AppEntry(t, "one")
	e2 := testutil.AppEntry(t, "two")
	base := testutil.AppEntry(t, "base").Hash()

	c1 := alice.Create(t, e1, 10)
	c2 := bob.Create(t, e1, 10)
	c3 := bob.Create(t, e2, 11)
	l1 := alice.CreateLink(t, base, e1.Hash(), 0, "a", 12)
	l2 := bob.CreateLink(t, base, e2.Hash(), 0, "b", 13)

	return fixture{
		elements: []model.Element{
			c1, c2, c3, l1, l2,
			alice.Delete(t, c1, 20),
			bob.Delete(t, c2, 21),
			alice.Update(t, c3, testutil.AppEntry(t, "three"), 22),
			alice.DeleteLink(t, l1, 23),
		},
		entries: []holohash.EntryHash{e1.Hash(), e2.Hash()},
		base:    base,
	}
}

// storeStateMachine runs the same operations against memstore, the
// reference, and the badger store.
type storeStateMachine struct {
	fx     fixture
	dir    string
	sut    *Store
	expect *memstore.Store
}

func (m *storeStateMachine) Init(t *rapid.T) {
	dir, err := os.MkdirTemp("", "badgerstore-rapid-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	m.dir = dir
	m.expect = memstore.New()
	m.open(t)
}

func (m *storeStateMachine) open(t *rapid.T) {
	s, err := Open(Options{Path: m.dir})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	m.sut = s
}

func (m *storeStateMachine) Cleanup() {
	if m.sut != nil {
		_ = m.sut.Close()
	}
	_ = os.RemoveAll(m.dir)
}

func (m *storeStateMachine) Merge(t *rapid.T) {
	ctx := context.Background()
	el := rapid.SampledFrom(m.fx.elements).Draw(t, "element")
	if err := store.Merge(ctx, m.sut, m.sut, el); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := store.Merge(ctx, m.expect, m.expect, el); err != nil {
		t.Fatalf("reference Merge failed: %v", err)
	}
}

func (m *storeStateMachine) RegisterStatus(t *rapid.T) {
	ctx := context.Background()
	entry := rapid.SampledFrom(m.fx.entries).Draw(t, "entry")
	status := model.EntryDhtStatus(rapid.IntRange(0, int(model.StatusPurged)).Draw(t, "status"))
	if err := m.sut.RegisterStatus(ctx, entry, status); err != nil {
		t.Fatalf("RegisterStatus failed: %v", err)
	}
	_ = m.expect.RegisterStatus(ctx, entry, status)
}

func (m *storeStateMachine) Restart(t *rapid.T) {
	_ = m.sut.Close()
	m.open(t)
}

func (m *storeStateMachine) Check(t *rapid.T) {
	ctx := context.Background()
	for _, e := range m.fx.entries {
		got, err := m.sut.GetDhtStatus(ctx, e)
		if err != nil {
			t.Fatalf("GetDhtStatus: %v", err)
		}
		want, _ := m.expect.GetDhtStatus(ctx, e)
		if got != want {
			t.Errorf("status of %s: got %s, want %s", e, got, want)
		}

		gotHeaders, err := m.sut.GetHeaders(ctx, e)
		if err != nil {
			t.Fatalf("GetHeaders: %v", err)
		}
		wantHeaders, _ := m.expect.GetHeaders(ctx, e)
		if len(gotHeaders) != len(wantHeaders) {
			t.Fatalf("headers of %s: got %d, want %d", e, len(gotHeaders), len(wantHeaders))
		}
		for i := range gotHeaders {
			if gotHeaders[i] != wantHeaders[i] {
				t.Errorf("header %d of %s differs", i, e)
			}
		}
	}

	gotLinks, err := m.sut.GetLinks(ctx, model.LinkKeyBase(m.fx.base))
	if err != nil {
		t.Fatalf("GetLinks: %v", err)
	}
	wantLinks, _ := m.expect.GetLinks(ctx, model.LinkKeyBase(m.fx.base))
	if len(gotLinks) != len(wantLinks) {
		t.Fatalf("links: got %d, want %d", len(gotLinks), len(wantLinks))
	}
	for i := range gotLinks {
		if gotLinks[i].LinkAddHash != wantLinks[i].LinkAddHash {
			t.Errorf("link %d differs", i)
		}
	}
}

func TestStoreMatchesReferenceProperty(t *testing.T) {
	fx := newFixture(t)
	rapid.Check(t, func(t *rapid.T) {
		m := &storeStateMachine{fx: fx}
		m.Init(t)
		defer m.Cleanup()

		t.Repeat(map[string]func(*rapid.T){
			"Merge":          m.Merge,
			"RegisterStatus": m.RegisterStatus,
			"Restart":        m.Restart,
			"":               m.Check,
		})
	})
}
