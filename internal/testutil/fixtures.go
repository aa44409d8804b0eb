package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/stretchr/testify/require"
)

// Agent authors signed headers with a deterministic key.
type Agent struct {
	Key  holohash.AgentPubKey
	Priv ed25519.PrivateKey

	seq  uint32
	prev holohash.HeaderHash
}

// NewAgent derives an agent from seed.
func NewAgent(t testing.TB, seed byte) *Agent {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	s[1] = 0xa5
	priv := ed25519.NewKeyFromSeed(s)
	key, err := holohash.NewAgentPubKey(priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	return &Agent{Key: key, Priv: priv}
}

func (a *Agent) common(ts model.Timestamp) model.HeaderCommon {
	c := model.HeaderCommon{
		Author:     a.Key,
		Timestamp:  ts,
		HeaderSeq:  a.seq,
		PrevHeader: a.prev,
	}
	return c
}

func (a *Agent) sign(t testing.TB, h model.Header, entry *model.Entry) model.Element {
	t.Helper()
	shh, err := model.Sign(a.Priv, h)
	require.NoError(t, err)
	a.seq++
	a.prev = shh.Hash()
	return model.NewElement(shh, entry)
}

// AppEntry builds an App entry from s.
func AppEntry(t testing.TB, s string) model.Entry {
	t.Helper()
	e, err := model.NewAppEntry([]byte(s))
	require.NoError(t, err)
	return e
}

func (a *Agent) Create(t testing.TB, entry model.Entry, ts model.Timestamp) model.Element {
	t.Helper()
	return a.sign(t, model.Create{
		HeaderCommon: a.common(ts),
		EntryType:    model.EntryTypeOf(entry),
		EntryHash:    entry.Hash(),
	}, &entry)
}

func (a *Agent) Update(
	t testing.TB,
	original model.Element,
	entry model.Entry,
	ts model.Timestamp,
) model.Element {
	t.Helper()
	origEntry, _, ok := original.Header().EntryData()
	require.True(t, ok, "update of a header without entry")
	return a.sign(t, model.Update{
		HeaderCommon:          a.common(ts),
		OriginalHeaderAddress: original.HeaderHash(),
		OriginalEntryAddress:  origEntry,
		EntryType:             model.EntryTypeOf(entry),
		EntryHash:             entry.Hash(),
	}, &entry)
}

func (a *Agent) Delete(t testing.TB, target model.Element, ts model.Timestamp) model.Element {
	t.Helper()
	entry, _, ok := target.Header().EntryData()
	require.True(t, ok, "delete of a header without entry")
	return a.sign(t, model.Delete{
		HeaderCommon:        a.common(ts),
		DeletesAddress:      target.HeaderHash(),
		DeletesEntryAddress: entry,
	}, nil)
}

func (a *Agent) CreateLink(
	t testing.TB,
	base, target holohash.EntryHash,
	zome model.ZomeID,
	tag string,
	ts model.Timestamp,
) model.Element {
	t.Helper()
	return a.sign(t, model.CreateLink{
		HeaderCommon:  a.common(ts),
		BaseAddress:   base,
		TargetAddress: target,
		ZomeID:        zome,
		Tag:           model.LinkTag(tag),
	}, nil)
}

func (a *Agent) DeleteLink(t testing.TB, link model.Element, ts model.Timestamp) model.Element {
	t.Helper()
	c, err := model.AsCreateLink(link.Header())
	require.NoError(t, err)
	return a.sign(t, model.DeleteLink{
		HeaderCommon:   a.common(ts),
		BaseAddress:    c.BaseAddress,
		LinkAddAddress: link.HeaderHash(),
	}, nil)
}
