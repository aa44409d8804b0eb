package model

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newKey(t *testing.T, seed byte) (holohash.AgentPubKey, ed25519.PrivateKey) {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	priv := ed25519.NewKeyFromSeed(s)
	agent, err := holohash.NewAgentPubKey(priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	return agent, priv
}

func newCreate(
	t *testing.T,
	priv ed25519.PrivateKey,
	author holohash.AgentPubKey,
	ts Timestamp,
	entry Entry,
) SignedHeaderHashed {
	t.Helper()
	shh, err := Sign(priv, Create{
		HeaderCommon: HeaderCommon{Author: author, Timestamp: ts, HeaderSeq: 3},
		EntryType:    EntryTypeOf(entry),
		EntryHash:    entry.Hash(),
	})
	require.NoError(t, err)
	return shh
}

func TestAgentEntryHashEqualsAgentKey(t *testing.T) {
	agent, _ := newKey(t, 1)
	entry := NewAgentEntry(agent)
	assert.Equal(t, holohash.AgentToEntry(agent), entry.Hash())
	assert.Equal(t, agent, holohash.EntryToAgent(entry.Hash()))
}

func TestAppEntryHashIsContentAddressed(t *testing.T) {
	a, err := NewAppEntry([]byte("hello"))
	require.NoError(t, err)
	b, err := NewAppEntry([]byte("hello"))
	require.NoError(t, err)
	c, err := NewAppEntry([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Equal(t, holohash.RoleEntry, a.Hash().Role())
}

func TestAppEntrySizeLimit(t *testing.T) {
	_, err := NewAppEntry(make([]byte, EntrySizeLimit))
	require.NoError(t, err)

	_, err = NewAppEntry(make([]byte, EntrySizeLimit+1))
	assert.ErrorIs(t, err, ErrEntryTooLarge)
}

func TestCapGrantView(t *testing.T) {
	agent, _ := newKey(t, 2)
	grant := NewCapGrantEntry(CapGrant{Tag: "read", Access: AccessUnrestricted})
	view, ok := grant.AsCapGrant()
	require.True(t, ok)
	require.NotNil(t, view.Remote)
	assert.Equal(t, "read", view.Remote.Tag)

	chainGrant, ok := NewAgentEntry(agent).AsCapGrant()
	require.True(t, ok)
	require.NotNil(t, chainGrant.ChainAuthor)
	assert.Equal(t, agent, *chainGrant.ChainAuthor)

	app, err := NewAppEntry([]byte("x"))
	require.NoError(t, err)
	_, ok = app.AsCapGrant()
	assert.False(t, ok)
	_, ok = app.AsCapClaim()
	assert.False(t, ok)
}

func TestHeaderEncodeDecode(t *testing.T) {
	agent, _ := newKey(t, 3)
	entry, err := NewAppEntry([]byte("payload"))
	require.NoError(t, err)
	common := HeaderCommon{Author: agent, Timestamp: 42, HeaderSeq: 7}
	createHash := holohash.HashContent[holohash.Header]([]byte("create"))

	headers := []Header{
		Dna{HeaderCommon: common, Hash: holohash.HashContent[holohash.Dna]([]byte("dna"))},
		Create{HeaderCommon: common, EntryType: EntryTypeOf(entry), EntryHash: entry.Hash()},
		Update{
			HeaderCommon:          common,
			OriginalHeaderAddress: createHash,
			OriginalEntryAddress:  entry.Hash(),
			EntryType:             EntryTypeOf(entry),
			EntryHash:             entry.Hash(),
		},
		Delete{HeaderCommon: common, DeletesAddress: createHash, DeletesEntryAddress: entry.Hash()},
		CreateLink{
			HeaderCommon:  common,
			BaseAddress:   entry.Hash(),
			TargetAddress: entry.Hash(),
			ZomeID:        2,
			Tag:           LinkTag("tag"),
		},
		DeleteLink{HeaderCommon: common, BaseAddress: entry.Hash(), LinkAddAddress: createHash},
	}

	for _, h := range headers {
		t.Run(h.Type().String(), func(t *testing.T) {
			b, err := EncodeHeader(h)
			require.NoError(t, err)
			got, err := DecodeHeader(b)
			require.NoError(t, err)
			assert.Equal(t, h, got)

			h1, err := HashHeader(h)
			require.NoError(t, err)
			h2, err := HashHeader(got)
			require.NoError(t, err)
			assert.Equal(t, h1, h2)
		})
	}
}

func TestConversionError(t *testing.T) {
	agent, _ := newKey(t, 4)
	h := Delete{HeaderCommon: HeaderCommon{Author: agent}}

	_, err := AsCreateLink(h)
	var convErr *ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, HeaderCreateLink, convErr.Want)
	assert.Equal(t, HeaderDelete, convErr.Got)

	d, err := AsDelete(h)
	require.NoError(t, err)
	assert.Equal(t, h, d)
}

func TestSignedHeaderVerifyAndRoundTrip(t *testing.T) {
	agent, priv := newKey(t, 5)
	entry, err := NewAppEntry([]byte("signed"))
	require.NoError(t, err)
	shh := newCreate(t, priv, agent, 100, entry)
	assert.True(t, shh.Verify())

	el := NewElement(shh, &entry)
	b, err := EncodeElement(el)
	require.NoError(t, err)
	got, err := DecodeElement(b)
	require.NoError(t, err)

	assert.Equal(t, el.HeaderHash(), got.HeaderHash())
	assert.Equal(t, el.Header(), got.Header())
	require.NotNil(t, got.Entry)
	assert.Equal(t, entry.Hash(), got.Entry.Hash())
	assert.True(t, got.SignedHeader.Verify())

	other, _ := newKey(t, 6)
	forged := SignedHeader{
		Header: Create{
			HeaderCommon: HeaderCommon{Author: other, Timestamp: 100},
			EntryHash:    entry.Hash(),
		},
		Signature: shh.Signature(),
	}
	fshh, err := NewSignedHeaderHashed(forged)
	require.NoError(t, err)
	assert.False(t, fshh.Verify())
}

func TestElementWithoutEntry(t *testing.T) {
	agent, priv := newKey(t, 7)
	shh, err := Sign(priv, Delete{HeaderCommon: HeaderCommon{Author: agent, Timestamp: 9}})
	require.NoError(t, err)

	b, err := EncodeElement(NewElement(shh, nil))
	require.NoError(t, err)
	got, err := DecodeElement(b)
	require.NoError(t, err)
	assert.Nil(t, got.Entry)
	assert.Equal(t, shh.Hash(), got.HeaderHash())
}

func TestElementGroup(t *testing.T) {
	a1, p1 := newKey(t, 8)
	a2, p2 := newKey(t, 9)
	entry, err := NewAppEntry([]byte("shared"))
	require.NoError(t, err)

	h1 := newCreate(t, p1, a1, 10, entry)
	h2 := newCreate(t, p2, a2, 20, entry)

	group, err := NewElementGroup([]SignedHeaderHashed{h1, h2, h1}, entry)
	require.NoError(t, err)
	assert.Equal(t, 2, group.Len())
	assert.Equal(t, entry.Hash(), group.EntryHash())

	elements := group.Elements()
	require.Len(t, elements, 2)
	for _, el := range elements {
		require.NotNil(t, el.Entry)
		assert.Equal(t, entry.Hash(), el.Entry.Hash())
	}

	_, err = NewElementGroup(nil, entry)
	assert.ErrorIs(t, err, ErrEmptyGroup)

	other, err := NewAppEntry([]byte("other"))
	require.NoError(t, err)
	_, err = NewElementGroup([]SignedHeaderHashed{h1}, other)
	assert.ErrorIs(t, err, ErrGroupEntryMismatch)
}

func TestTimedHeaderHashOrdering(t *testing.T) {
	low := holohash.HashContent[holohash.Header]([]byte("a"))
	high := holohash.HashContent[holohash.Header]([]byte("b"))
	if high.Compare(low) < 0 {
		low, high = high, low
	}

	early := TimedHeaderHash{Timestamp: 1, HeaderHash: high}
	lateLow := TimedHeaderHash{Timestamp: 2, HeaderHash: low}
	lateHigh := TimedHeaderHash{Timestamp: 2, HeaderHash: high}

	assert.True(t, early.Less(lateLow))
	assert.True(t, lateLow.Less(lateHigh))
	assert.False(t, lateHigh.Less(lateLow))

	oldest, ok := Oldest([]TimedHeaderHash{lateHigh, lateLow, early})
	require.True(t, ok)
	assert.Equal(t, early, oldest)

	_, ok = Oldest(nil)
	assert.False(t, ok)

	sorted := SortTimed([]TimedHeaderHash{lateHigh, early, lateLow, early})
	assert.Equal(t, []TimedHeaderHash{early, lateLow, lateHigh}, sorted)
}

func TestOldestIsMinimumProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		hashes := make([]TimedHeaderHash, n)
		for i := range hashes {
			seed := rapid.SliceOfN(rapid.Byte(), 8, 8).Draw(t, "seed")
			hashes[i] = TimedHeaderHash{
				Timestamp:  Timestamp(rapid.Int64Range(0, 5).Draw(t, "ts")),
				HeaderHash: holohash.HashContent[holohash.Header](seed),
			}
		}
		oldest, ok := Oldest(hashes)
		if !ok {
			t.Fatal("no oldest for non-empty input")
		}
		for _, h := range hashes {
			if h.Less(oldest) {
				t.Fatalf("%v is older than reported oldest %v", h, oldest)
			}
		}
		sorted := SortTimed(append([]TimedHeaderHash(nil), hashes...))
		if sorted[0] != oldest {
			t.Fatalf("sorted head %v != oldest %v", sorted[0], oldest)
		}
	})
}

func TestLinkMetaKeyMatches(t *testing.T) {
	base := holohash.HashContent[holohash.Entry]([]byte("base"))
	otherBase := holohash.HashContent[holohash.Entry]([]byte("other"))
	addHash := holohash.HashContent[holohash.Header]([]byte("add"))
	val := LinkMetaVal{
		LinkAddHash: addHash,
		Base:        base,
		Target:      otherBase,
		Timestamp:   5,
		ZomeID:      1,
		Tag:         LinkTag("friend:alice"),
	}

	assert.True(t, LinkKeyBase(base).Matches(val))
	assert.False(t, LinkKeyBase(otherBase).Matches(val))
	assert.True(t, LinkKeyBaseZome(base, 1).Matches(val))
	assert.False(t, LinkKeyBaseZome(base, 2).Matches(val))
	assert.True(t, LinkKeyBaseZomeTag(base, 1, LinkTag("friend:")).Matches(val))
	assert.False(t, LinkKeyBaseZomeTag(base, 1, LinkTag("enemy:")).Matches(val))
	assert.True(t, LinkKeyFull(base, 1, LinkTag("friend:alice"), addHash).Matches(val))
	assert.False(t, LinkKeyFull(base, 1, LinkTag("friend:alice"), base2Header()).Matches(val))

	link := val.Link()
	assert.Equal(t, addHash, link.CreateLinkHash)
	assert.Equal(t, otherBase, link.Target)
}

func base2Header() holohash.HeaderHash {
	return holohash.HashContent[holohash.Header]([]byte("not-add"))
}

func TestStatusNames(t *testing.T) {
	for s := StatusLive; s <= StatusPurged; s++ {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	assert.True(t, StatusLive.IsLive())
	assert.False(t, StatusDead.IsLive())
	_, err := ParseStatus("Zombie")
	assert.Error(t, err)
}
