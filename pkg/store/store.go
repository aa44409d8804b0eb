// Package store defines the element and metadata stores the cascade reads
// from and writes into, and the logic shared by every implementation:
// status derivation, op integration and layered reads.
package store

import (
	"context"
	"errors"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
)

var (
	// ErrInvalidSysMeta is returned when a value is registered on an
	// address that cannot hold it.
	ErrInvalidSysMeta = errors.New("store: invalid system metadata")
	// ErrClosed is returned by persistent stores after Close.
	ErrClosed = errors.New("store: closed")
)

// ElementReader reads elements, headers and entries by address. Absent
// data is a nil result, not an error.
type ElementReader interface {
	GetElement(ctx context.Context, hash holohash.HeaderHash) (*model.Element, error)
	GetHeader(ctx context.Context, hash holohash.HeaderHash) (*model.SignedHeaderHashed, error)
	GetEntry(ctx context.Context, hash holohash.EntryHash) (*model.Entry, error)
}

// ElementStore is a writable ElementReader. Puts are idempotent.
type ElementStore interface {
	ElementReader

	// Put stores a header and, when given, its entry.
	Put(ctx context.Context, shh model.SignedHeaderHashed, entry *model.Entry) error

	// PutElementGroup stores every header of g and its shared entry once.
	PutElementGroup(ctx context.Context, g model.ElementGroup) error
}

// MetadataReader answers CRUD metadata queries. Lists of header hashes
// are ordered by TimedHeaderHash and free of duplicates.
type MetadataReader interface {
	// GetHeaders returns the Create and Update headers of an entry.
	GetHeaders(ctx context.Context, entry holohash.EntryHash) ([]model.TimedHeaderHash, error)
	GetDeletesOnEntry(ctx context.Context, entry holohash.EntryHash) ([]model.TimedHeaderHash, error)
	GetDeletesOnHeader(ctx context.Context, header holohash.HeaderHash) ([]model.TimedHeaderHash, error)
	// GetUpdates returns the Update headers replacing an entry or header.
	GetUpdates(ctx context.Context, basis holohash.AnyDhtHash) ([]model.TimedHeaderHash, error)

	// GetDhtStatus derives the status of an entry, see DeriveStatus.
	GetDhtStatus(ctx context.Context, entry holohash.EntryHash) (model.EntryDhtStatus, error)
	// StatusOverride returns a status registered with RegisterStatus.
	StatusOverride(ctx context.Context, entry holohash.EntryHash) (model.EntryDhtStatus, bool, error)
	// HasEntryMetadata reports whether anything is known about an entry.
	HasEntryMetadata(ctx context.Context, entry holohash.EntryHash) (bool, error)

	// GetLinks returns the links selected by key that have no removes.
	GetLinks(ctx context.Context, key model.LinkMetaKey) ([]model.LinkMetaVal, error)
	GetLinksAll(ctx context.Context, key model.LinkMetaKey) ([]model.LinkMetaVal, error)
	GetLinkRemovesOnLinkAdd(ctx context.Context, linkAdd holohash.HeaderHash) ([]model.TimedHeaderHash, error)

	HasRegisteredStoreElement(ctx context.Context, header holohash.HeaderHash) (bool, error)
	HasRegisteredStoreEntry(ctx context.Context, entry holohash.EntryHash, header holohash.HeaderHash) (bool, error)
	HasAnyRegisteredStoreEntry(ctx context.Context, entry holohash.EntryHash) (bool, error)
}

// MetadataStore is a writable MetadataReader. Every write is append-only
// and registering the same value twice is a no-op.
type MetadataStore interface {
	MetadataReader

	RegisterRawOnEntry(ctx context.Context, entry holohash.EntryHash, val SysMetaVal) error
	RegisterRawOnHeader(ctx context.Context, header holohash.HeaderHash, val SysMetaVal) error
	RegisterStoreElement(ctx context.Context, header holohash.HeaderHash) error
	RegisterLinkAdd(ctx context.Context, val model.LinkMetaVal) error
	RegisterLinkRemove(ctx context.Context, linkAdd holohash.HeaderHash, remove model.TimedHeaderHash) error

	// RegisterStatus records a validation outcome for an entry. Live
	// clears an earlier override.
	RegisterStatus(ctx context.Context, entry holohash.EntryHash, status model.EntryDhtStatus) error
}

// SysMetaKind tags the relation a SysMetaVal records.
type SysMetaKind uint8

const (
	SysMetaNewEntryHeader SysMetaKind = iota + 1
	SysMetaUpdate
	SysMetaDelete
)

func (k SysMetaKind) String() string {
	switch k {
	case SysMetaNewEntryHeader:
		return "NewEntryHeader"
	case SysMetaUpdate:
		return "Update"
	case SysMetaDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// SysMetaVal relates a header to the address it is registered on.
type SysMetaVal struct {
	Kind   SysMetaKind           `msgpack:"kind"`
	Header model.TimedHeaderHash `msgpack:"header"`
}

func NewEntryHeaderVal(h model.TimedHeaderHash) SysMetaVal {
	return SysMetaVal{Kind: SysMetaNewEntryHeader, Header: h}
}

func UpdateVal(h model.TimedHeaderHash) SysMetaVal {
	return SysMetaVal{Kind: SysMetaUpdate, Header: h}
}

func DeleteVal(h model.TimedHeaderHash) SysMetaVal {
	return SysMetaVal{Kind: SysMetaDelete, Header: h}
}
