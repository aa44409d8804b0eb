package model

import (
	"bytes"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
)

// ZomeID identifies the zome that defined a link.
type ZomeID uint8

// LinkTag is free-form data attached to a link. Link queries match tags by
// prefix.
type LinkTag []byte

// Link is a live link as returned to callers.
type Link struct {
	Target         holohash.EntryHash
	Timestamp      Timestamp
	ZomeID         ZomeID
	Tag            LinkTag
	CreateLinkHash holohash.HeaderHash
}

// LinkMetaVal is what the metadata store indexes for one CreateLink.
type LinkMetaVal struct {
	LinkAddHash holohash.HeaderHash `msgpack:"link_add_hash"`
	Base        holohash.EntryHash  `msgpack:"base"`
	Target      holohash.EntryHash  `msgpack:"target"`
	Timestamp   Timestamp           `msgpack:"timestamp"`
	ZomeID      ZomeID              `msgpack:"zome_id"`
	Tag         LinkTag             `msgpack:"tag"`
}

// LinkMetaValOf builds the index value of a CreateLink header.
func LinkMetaValOf(hash holohash.HeaderHash, c CreateLink) LinkMetaVal {
	return LinkMetaVal{
		LinkAddHash: hash,
		Base:        c.BaseAddress,
		Target:      c.TargetAddress,
		Timestamp:   c.Timestamp,
		ZomeID:      c.ZomeID,
		Tag:         c.Tag,
	}
}

func (v LinkMetaVal) Link() Link {
	return Link{
		Target:         v.Target,
		Timestamp:      v.Timestamp,
		ZomeID:         v.ZomeID,
		Tag:            v.Tag,
		CreateLinkHash: v.LinkAddHash,
	}
}

func (v LinkMetaVal) Timed() TimedHeaderHash {
	return TimedHeaderHash{Timestamp: v.Timestamp, HeaderHash: v.LinkAddHash}
}

// LinkMetaKey selects links on a base. Zome narrows by zome, Tag by tag
// prefix and LinkAdd to a single CreateLink.
type LinkMetaKey struct {
	Base    holohash.EntryHash
	Zome    *ZomeID
	Tag     LinkTag
	LinkAdd *holohash.HeaderHash
}

func LinkKeyBase(base holohash.EntryHash) LinkMetaKey {
	return LinkMetaKey{Base: base}
}

func LinkKeyBaseZome(base holohash.EntryHash, zome ZomeID) LinkMetaKey {
	return LinkMetaKey{Base: base, Zome: &zome}
}

func LinkKeyBaseZomeTag(
	base holohash.EntryHash,
	zome ZomeID,
	tag LinkTag,
) LinkMetaKey {
	return LinkMetaKey{Base: base, Zome: &zome, Tag: tag}
}

func LinkKeyFull(
	base holohash.EntryHash,
	zome ZomeID,
	tag LinkTag,
	linkAdd holohash.HeaderHash,
) LinkMetaKey {
	return LinkMetaKey{Base: base, Zome: &zome, Tag: tag, LinkAdd: &linkAdd}
}

// Matches reports whether v is selected by k.
func (k LinkMetaKey) Matches(v LinkMetaVal) bool {
	if v.Base != k.Base {
		return false
	}
	if k.Zome != nil && *k.Zome != v.ZomeID {
		return false
	}
	if !bytes.HasPrefix(v.Tag, k.Tag) {
		return false
	}
	if k.LinkAdd != nil && *k.LinkAdd != v.LinkAddHash {
		return false
	}
	return true
}

// LinkDetail is one CreateLink with every DeleteLink that removes it,
// ordered by time.
type LinkDetail struct {
	CreateHash holohash.HeaderHash
	Create     CreateLink
	Deletes    []DeleteLink
}
