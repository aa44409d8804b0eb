package dhtop

import (
	"crypto/ed25519"
	"testing"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, h func(model.HeaderCommon) model.Header) model.SignedHeaderHashed {
	t.Helper()
	priv := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	agent, err := holohash.NewAgentPubKey(priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	shh, err := model.Sign(priv, h(model.HeaderCommon{Author: agent, Timestamp: 77}))
	require.NoError(t, err)
	return shh
}

func types(ops []Op) []OpType {
	out := make([]OpType, len(ops))
	for i, op := range ops {
		out[i] = op.Type
	}
	return out
}

func TestProduceByHeaderType(t *testing.T) {
	entry, err := model.NewAppEntry([]byte("op"))
	require.NoError(t, err)
	base := entry.Hash()
	orig := holohash.HashContent[holohash.Header]([]byte("orig"))
	origEntry := holohash.HashContent[holohash.Entry]([]byte("orig-entry"))

	create := signed(t, func(c model.HeaderCommon) model.Header {
		return model.Create{HeaderCommon: c, EntryHash: entry.Hash()}
	})
	update := signed(t, func(c model.HeaderCommon) model.Header {
		return model.Update{
			HeaderCommon:          c,
			OriginalHeaderAddress: orig,
			OriginalEntryAddress:  origEntry,
			EntryHash:             entry.Hash(),
		}
	})
	del := signed(t, func(c model.HeaderCommon) model.Header {
		return model.Delete{HeaderCommon: c, DeletesAddress: orig, DeletesEntryAddress: origEntry}
	})
	link := signed(t, func(c model.HeaderCommon) model.Header {
		return model.CreateLink{HeaderCommon: c, BaseAddress: base, TargetAddress: base}
	})
	unlink := signed(t, func(c model.HeaderCommon) model.Header {
		return model.DeleteLink{HeaderCommon: c, BaseAddress: base, LinkAddAddress: link.Hash()}
	})

	ops := Produce(model.NewElement(create, &entry))
	assert.Equal(t, []OpType{StoreElement, StoreEntry}, types(ops))
	assert.Equal(t, holohash.EntryAddress(entry.Hash()), ops[1].Basis())
	assert.Equal(t, holohash.HeaderAddress(create.Hash()), ops[0].Basis())

	ops = Produce(model.NewElement(create, nil))
	assert.Equal(t, []OpType{StoreElement}, types(ops))

	ops = Produce(model.NewElement(update, &entry))
	assert.Equal(t, []OpType{StoreElement, StoreEntry, RegisterUpdatedBy}, types(ops))
	assert.Equal(t, holohash.EntryAddress(origEntry), ops[2].Basis())

	ops = Produce(model.NewElement(del, nil))
	assert.Equal(t, []OpType{StoreElement, RegisterDeletedBy, RegisterDeletedEntryHeader}, types(ops))
	assert.Equal(t, holohash.HeaderAddress(orig), ops[1].Basis())
	assert.Equal(t, holohash.EntryAddress(origEntry), ops[2].Basis())

	ops = Produce(model.NewElement(link, nil))
	assert.Equal(t, []OpType{StoreElement, RegisterAddLink}, types(ops))
	assert.Equal(t, holohash.EntryAddress(base), ops[1].Basis())

	ops = Produce(model.NewElement(unlink, nil))
	assert.Equal(t, []OpType{StoreElement, RegisterRemoveLink}, types(ops))
}

func TestOpHashIsStableAndDistinct(t *testing.T) {
	del := signed(t, func(c model.HeaderCommon) model.Header {
		return model.Delete{HeaderCommon: c}
	})
	first := Produce(model.NewElement(del, nil))
	second := Produce(model.NewElement(del, nil))
	require.Len(t, first, 3)

	seen := map[holohash.DhtOpHash]bool{}
	for i := range first {
		assert.Equal(t, first[i].Hash(), second[i].Hash())
		assert.Equal(t, holohash.RoleDhtOp, first[i].Hash().Role())
		seen[first[i].Hash()] = true
	}
	assert.Len(t, seen, 3)
}
