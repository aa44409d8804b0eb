package network

import (
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
)

// GetElementResponse is one authority's answer to Get. It is either a
// GetEntryFullResponse or a GetHeaderResponse.
type GetElementResponse interface {
	isGetElementResponse()
}

// GetEntryFullResponse answers a Get for an entry. Raw is nil when the
// authority holds no headers for it.
type GetEntryFullResponse struct {
	Raw *RawGetEntryResponse
}

// GetHeaderResponse answers a Get for a header. Element is nil when the
// authority does not hold it.
type GetHeaderResponse struct {
	Element *WireElement
}

func (GetEntryFullResponse) isGetElementResponse() {}
func (GetHeaderResponse) isGetElementResponse()    {}

// RawGetEntryResponse carries the live headers of one entry, the entry
// itself once, and the deletes and updates the authority knows.
type RawGetEntryResponse struct {
	LiveHeaders []WireNewEntryHeader     `msgpack:"live_headers"`
	Deletes     []WireDelete             `msgpack:"deletes"`
	Updates     []WireUpdateRelationship `msgpack:"updates"`
	Entry       model.Entry              `msgpack:"entry"`
	EntryType   model.EntryType          `msgpack:"entry_type"`
}

// WireNewEntryHeader is a signed Create or Update header sent without its
// entry.
type WireNewEntryHeader struct {
	Header model.SignedHeader `msgpack:"header"`
}

// WireDelete is a signed Delete header.
type WireDelete struct {
	Delete    model.Delete    `msgpack:"delete"`
	Signature model.Signature `msgpack:"signature"`
}

// WireUpdateRelationship is a signed Update header that replaces the
// requested data.
type WireUpdateRelationship struct {
	Update    model.Update    `msgpack:"update"`
	Signature model.Signature `msgpack:"signature"`
}

// WireElement is an element with the delete of its header, if the
// authority knows one.
type WireElement struct {
	SignedHeader model.SignedHeader `msgpack:"signed_header"`
	Entry        *model.Entry       `msgpack:"entry,omitempty"`
	Deleted      *WireDelete        `msgpack:"deleted,omitempty"`
}

// MetadataSet is one authority's raw metadata on a basis.
type MetadataSet struct {
	Headers []model.TimedHeaderHash `msgpack:"headers"`
	Deletes []model.TimedHeaderHash `msgpack:"deletes"`
	Updates []model.TimedHeaderHash `msgpack:"updates"`
	// Status is set for entry bases.
	Status *model.EntryDhtStatus `msgpack:"status,omitempty"`
}

// WireLinkMetaKey is a link query as sent to authorities.
type WireLinkMetaKey model.LinkMetaKey

// GetLinksResponse carries the signed link headers on a base.
type GetLinksResponse struct {
	LinkAdds    []WireCreateLink `msgpack:"link_adds"`
	LinkRemoves []WireDeleteLink `msgpack:"link_removes"`
}

type WireCreateLink struct {
	CreateLink model.CreateLink `msgpack:"create_link"`
	Signature  model.Signature  `msgpack:"signature"`
}

type WireDeleteLink struct {
	DeleteLink model.DeleteLink `msgpack:"delete_link"`
	Signature  model.Signature  `msgpack:"signature"`
}

func hashed(h model.Header, sig model.Signature) (model.Element, error) {
	shh, err := model.NewSignedHeaderHashed(model.SignedHeader{Header: h, Signature: sig})
	if err != nil {
		return model.Element{}, err
	}
	return model.NewElement(shh, nil), nil
}

// Element rebuilds the delete element.
func (w WireDelete) Element() (model.Element, error) {
	return hashed(w.Delete, w.Signature)
}

// Element rebuilds the update element. The new entry is not carried.
func (w WireUpdateRelationship) Element() (model.Element, error) {
	return hashed(w.Update, w.Signature)
}

func (w WireCreateLink) Element() (model.Element, error) {
	return hashed(w.CreateLink, w.Signature)
}

func (w WireDeleteLink) Element() (model.Element, error) {
	return hashed(w.DeleteLink, w.Signature)
}

// Elements rebuilds the element and, when present, the delete of its
// header.
func (w WireElement) Elements() (model.Element, *model.Element, error) {
	shh, err := model.NewSignedHeaderHashed(w.SignedHeader)
	if err != nil {
		return model.Element{}, nil, err
	}
	el := model.NewElement(shh, w.Entry)
	if w.Deleted == nil {
		return el, nil, nil
	}
	del, err := w.Deleted.Element()
	if err != nil {
		return model.Element{}, nil, err
	}
	return el, &del, nil
}

// ElementGroup assembles the live headers of r into one group sharing the
// entry.
func (r RawGetEntryResponse) ElementGroup() (model.ElementGroup, error) {
	headers := make([]model.SignedHeaderHashed, 0, len(r.LiveHeaders))
	for _, wh := range r.LiveHeaders {
		shh, err := model.NewSignedHeaderHashed(wh.Header)
		if err != nil {
			return model.ElementGroup{}, err
		}
		if _, _, ok := shh.Header().EntryData(); !ok {
			return model.ElementGroup{}, fmt.Errorf(
				"%w: live header %s is a %s",
				model.ErrGroupEntryMismatch, shh.Hash(), shh.Header().Type(),
			)
		}
		headers = append(headers, shh)
	}
	return model.NewElementGroup(headers, r.Entry)
}

// EntryHash returns the hash of the entry r is about.
func (r RawGetEntryResponse) EntryHash() holohash.EntryHash {
	return r.Entry.Hash()
}
