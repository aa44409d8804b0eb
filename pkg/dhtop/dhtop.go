// Package dhtop derives the DHT operations an element produces. Each op
// names the basis address an authority stores it under and the metadata it
// contributes there.
package dhtop

import (
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/vmihailenco/msgpack/v5"
)

// OpType tags the kind of metadata an op registers.
type OpType uint8

const (
	StoreElement OpType = iota + 1
	StoreEntry
	RegisterUpdatedBy
	RegisterDeletedBy
	RegisterDeletedEntryHeader
	RegisterAddLink
	RegisterRemoveLink
)

func (t OpType) String() string {
	switch t {
	case StoreElement:
		return "StoreElement"
	case StoreEntry:
		return "StoreEntry"
	case RegisterUpdatedBy:
		return "RegisterUpdatedBy"
	case RegisterDeletedBy:
		return "RegisterDeletedBy"
	case RegisterDeletedEntryHeader:
		return "RegisterDeletedEntryHeader"
	case RegisterAddLink:
		return "RegisterAddLink"
	case RegisterRemoveLink:
		return "RegisterRemoveLink"
	default:
		return fmt.Sprintf("OpType(%d)", uint8(t))
	}
}

// Op is one DHT operation. Header is the header that produced it; Entry is
// set for StoreEntry and, when held, for StoreElement.
type Op struct {
	Type   OpType
	Header model.SignedHeaderHashed
	Entry  *model.Entry
}

// Light is the payload-free form of an op, enough to integrate metadata
// and to address the op.
type Light struct {
	Type      OpType              `msgpack:"type"`
	Header    holohash.HeaderHash `msgpack:"header"`
	Basis     holohash.AnyDhtHash `msgpack:"basis"`
	Timestamp model.Timestamp     `msgpack:"timestamp"`
}

// Basis returns the address the op is stored under.
func (o Op) Basis() holohash.AnyDhtHash {
	switch h := o.Header.Header().(type) {
	case model.Create:
		if o.Type == StoreEntry {
			return holohash.EntryAddress(h.EntryHash)
		}
	case model.Update:
		switch o.Type {
		case StoreEntry:
			return holohash.EntryAddress(h.EntryHash)
		case RegisterUpdatedBy:
			return holohash.EntryAddress(h.OriginalEntryAddress)
		}
	case model.Delete:
		switch o.Type {
		case RegisterDeletedBy:
			return holohash.HeaderAddress(h.DeletesAddress)
		case RegisterDeletedEntryHeader:
			return holohash.EntryAddress(h.DeletesEntryAddress)
		}
	case model.CreateLink:
		if o.Type == RegisterAddLink {
			return holohash.EntryAddress(h.BaseAddress)
		}
	case model.DeleteLink:
		if o.Type == RegisterRemoveLink {
			return holohash.EntryAddress(h.BaseAddress)
		}
	}
	return holohash.HeaderAddress(o.Header.Hash())
}

func (o Op) Light() Light {
	return Light{
		Type:      o.Type,
		Header:    o.Header.Hash(),
		Basis:     o.Basis(),
		Timestamp: o.Header.Header().Common().Timestamp,
	}
}

// Hash addresses the op by its light form, so the same header always
// yields the same op hashes.
func (o Op) Hash() holohash.DhtOpHash {
	b, err := msgpack.Marshal(o.Light())
	if err != nil {
		panic(fmt.Sprintf("dhtop: encode light: %v", err))
	}
	return holohash.HashContent[holohash.DhtOp](b)
}

// Produce returns the ops of el. StoreEntry is only produced when the
// element carries its entry.
func Produce(el model.Element) []Op {
	shh := el.SignedHeader
	ops := []Op{{Type: StoreElement, Header: shh, Entry: el.Entry}}
	switch shh.Header().(type) {
	case model.Create:
		if el.Entry != nil {
			ops = append(ops, Op{Type: StoreEntry, Header: shh, Entry: el.Entry})
		}
	case model.Update:
		if el.Entry != nil {
			ops = append(ops, Op{Type: StoreEntry, Header: shh, Entry: el.Entry})
		}
		ops = append(ops, Op{Type: RegisterUpdatedBy, Header: shh})
	case model.Delete:
		ops = append(ops,
			Op{Type: RegisterDeletedBy, Header: shh},
			Op{Type: RegisterDeletedEntryHeader, Header: shh},
		)
	case model.CreateLink:
		ops = append(ops, Op{Type: RegisterAddLink, Header: shh})
	case model.DeleteLink:
		ops = append(ops, Op{Type: RegisterRemoveLink, Header: shh})
	}
	return ops
}

// ProduceGroup returns the ops of every element in g.
func ProduceGroup(g model.ElementGroup) []Op {
	var ops []Op
	for _, el := range g.Elements() {
		ops = append(ops, Produce(el)...)
	}
	return ops
}
