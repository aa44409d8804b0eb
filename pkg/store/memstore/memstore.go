// Package memstore is an in-memory element and metadata store. It backs
// per-request caches and tests.
//
// Data is spread over shards by the location of its address. Each shard
// has its own lock, so concurrent merges into different address ranges do
// not contend and readers never block each other.
package memstore

import (
	"context"
	"sync"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
)

const shardCount = 16

type timedSet map[model.TimedHeaderHash]struct{}

func (s timedSet) sorted() []model.TimedHeaderHash {
	out := make([]model.TimedHeaderHash, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	return model.SortTimed(out)
}

type shard struct {
	mu sync.RWMutex

	headers map[holohash.HeaderHash]model.SignedHeaderHashed
	entries map[holohash.EntryHash]model.Entry

	entryHeaders   map[holohash.EntryHash]timedSet
	entryDeletes   map[holohash.EntryHash]timedSet
	entryUpdates   map[holohash.EntryHash]timedSet
	headerDeletes  map[holohash.HeaderHash]timedSet
	headerUpdates  map[holohash.HeaderHash]timedSet
	storedElements map[holohash.HeaderHash]struct{}
	status         map[holohash.EntryHash]model.EntryDhtStatus

	links       map[holohash.EntryHash]map[holohash.HeaderHash]model.LinkMetaVal
	linkRemoves map[holohash.HeaderHash]timedSet
}

func newShard() *shard {
	return &shard{
		headers:        make(map[holohash.HeaderHash]model.SignedHeaderHashed),
		entries:        make(map[holohash.EntryHash]model.Entry),
		entryHeaders:   make(map[holohash.EntryHash]timedSet),
		entryDeletes:   make(map[holohash.EntryHash]timedSet),
		entryUpdates:   make(map[holohash.EntryHash]timedSet),
		headerDeletes:  make(map[holohash.HeaderHash]timedSet),
		headerUpdates:  make(map[holohash.HeaderHash]timedSet),
		storedElements: make(map[holohash.HeaderHash]struct{}),
		status:         make(map[holohash.EntryHash]model.EntryDhtStatus),
		links:          make(map[holohash.EntryHash]map[holohash.HeaderHash]model.LinkMetaVal),
		linkRemoves:    make(map[holohash.HeaderHash]timedSet),
	}
}

// Store implements store.ElementStore and store.MetadataStore.
type Store struct {
	shards [shardCount]*shard
}

// New returns an empty store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = newShard()
	}
	return s
}

func shardFor[T holohash.HashType](s *Store, h holohash.HoloHash[T]) *shard {
	return s.shards[h.Location()%shardCount]
}

func addTimed[K comparable](m map[K]timedSet, k K, h model.TimedHeaderHash) {
	set, ok := m[k]
	if !ok {
		set = make(timedSet)
		m[k] = set
	}
	set[h] = struct{}{}
}

// Elements

func (s *Store) GetHeader(
	_ context.Context,
	hash holohash.HeaderHash,
) (*model.SignedHeaderHashed, error) {
	sh := shardFor(s, hash)
	sh.mu.RLock()
	shh, ok := sh.headers[hash]
	sh.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &shh, nil
}

func (s *Store) GetEntry(
	_ context.Context,
	hash holohash.EntryHash,
) (*model.Entry, error) {
	sh := shardFor(s, hash)
	sh.mu.RLock()
	e, ok := sh.entries[hash]
	sh.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// GetElement returns the header and, when it carries one that is held,
// its entry.
func (s *Store) GetElement(
	ctx context.Context,
	hash holohash.HeaderHash,
) (*model.Element, error) {
	shh, err := s.GetHeader(ctx, hash)
	if err != nil || shh == nil {
		return nil, err
	}
	var entry *model.Entry
	if eh, _, ok := shh.Header().EntryData(); ok {
		if entry, err = s.GetEntry(ctx, eh); err != nil {
			return nil, err
		}
	}
	el := model.NewElement(*shh, entry)
	return &el, nil
}

func (s *Store) Put(
	_ context.Context,
	shh model.SignedHeaderHashed,
	entry *model.Entry,
) error {
	sh := shardFor(s, shh.Hash())
	sh.mu.Lock()
	sh.headers[shh.Hash()] = shh
	sh.mu.Unlock()

	if entry != nil {
		eh := entry.Hash()
		esh := shardFor(s, eh)
		esh.mu.Lock()
		esh.entries[eh] = *entry
		esh.mu.Unlock()
	}
	return nil
}

func (s *Store) PutElementGroup(ctx context.Context, g model.ElementGroup) error {
	entry := g.Entry()
	for i, shh := range g.Headers() {
		var e *model.Entry
		if i == 0 {
			e = &entry
		}
		if err := s.Put(ctx, shh, e); err != nil {
			return err
		}
	}
	return nil
}

// Metadata

func (s *Store) GetHeaders(
	_ context.Context,
	entry holohash.EntryHash,
) ([]model.TimedHeaderHash, error) {
	sh := shardFor(s, entry)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.entryHeaders[entry].sorted(), nil
}

func (s *Store) GetDeletesOnEntry(
	_ context.Context,
	entry holohash.EntryHash,
) ([]model.TimedHeaderHash, error) {
	sh := shardFor(s, entry)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.entryDeletes[entry].sorted(), nil
}

func (s *Store) GetDeletesOnHeader(
	_ context.Context,
	header holohash.HeaderHash,
) ([]model.TimedHeaderHash, error) {
	sh := shardFor(s, header)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.headerDeletes[header].sorted(), nil
}

func (s *Store) GetUpdates(
	_ context.Context,
	basis holohash.AnyDhtHash,
) ([]model.TimedHeaderHash, error) {
	if entry, ok := basis.AsEntry(); ok {
		sh := shardFor(s, entry)
		sh.mu.RLock()
		defer sh.mu.RUnlock()
		return sh.entryUpdates[entry].sorted(), nil
	}
	if header, ok := basis.AsHeader(); ok {
		sh := shardFor(s, header)
		sh.mu.RLock()
		defer sh.mu.RUnlock()
		return sh.headerUpdates[header].sorted(), nil
	}
	return nil, nil
}

func (s *Store) GetDhtStatus(
	ctx context.Context,
	entry holohash.EntryHash,
) (model.EntryDhtStatus, error) {
	return store.DeriveStatus(ctx, s, entry)
}

func (s *Store) StatusOverride(
	_ context.Context,
	entry holohash.EntryHash,
) (model.EntryDhtStatus, bool, error) {
	sh := shardFor(s, entry)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	status, ok := sh.status[entry]
	return status, ok, nil
}

func (s *Store) HasEntryMetadata(
	ctx context.Context,
	entry holohash.EntryHash,
) (bool, error) {
	return store.EntryMetadataKnown(ctx, s, entry)
}

func (s *Store) GetLinksAll(
	_ context.Context,
	key model.LinkMetaKey,
) ([]model.LinkMetaVal, error) {
	sh := shardFor(s, key.Base)
	sh.mu.RLock()
	out := make([]model.LinkMetaVal, 0, len(sh.links[key.Base]))
	for _, v := range sh.links[key.Base] {
		if key.Matches(v) {
			out = append(out, v)
		}
	}
	sh.mu.RUnlock()
	store.SortLinks(out)
	return out, nil
}

func (s *Store) GetLinks(
	ctx context.Context,
	key model.LinkMetaKey,
) ([]model.LinkMetaVal, error) {
	return store.LiveLinks(ctx, s, key)
}

func (s *Store) GetLinkRemovesOnLinkAdd(
	_ context.Context,
	linkAdd holohash.HeaderHash,
) ([]model.TimedHeaderHash, error) {
	sh := shardFor(s, linkAdd)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.linkRemoves[linkAdd].sorted(), nil
}

func (s *Store) HasRegisteredStoreElement(
	_ context.Context,
	header holohash.HeaderHash,
) (bool, error) {
	sh := shardFor(s, header)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.storedElements[header]
	return ok, nil
}

func (s *Store) HasRegisteredStoreEntry(
	_ context.Context,
	entry holohash.EntryHash,
	header holohash.HeaderHash,
) (bool, error) {
	sh := shardFor(s, entry)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	for h := range sh.entryHeaders[entry] {
		if h.HeaderHash == header {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) HasAnyRegisteredStoreEntry(
	_ context.Context,
	entry holohash.EntryHash,
) (bool, error) {
	sh := shardFor(s, entry)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.entryHeaders[entry]) > 0, nil
}

func (s *Store) RegisterRawOnEntry(
	_ context.Context,
	entry holohash.EntryHash,
	val store.SysMetaVal,
) error {
	sh := shardFor(s, entry)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	switch val.Kind {
	case store.SysMetaNewEntryHeader:
		addTimed(sh.entryHeaders, entry, val.Header)
	case store.SysMetaUpdate:
		addTimed(sh.entryUpdates, entry, val.Header)
	case store.SysMetaDelete:
		addTimed(sh.entryDeletes, entry, val.Header)
	default:
		return store.ErrInvalidSysMeta
	}
	return nil
}

func (s *Store) RegisterRawOnHeader(
	_ context.Context,
	header holohash.HeaderHash,
	val store.SysMetaVal,
) error {
	sh := shardFor(s, header)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	switch val.Kind {
	case store.SysMetaUpdate:
		addTimed(sh.headerUpdates, header, val.Header)
	case store.SysMetaDelete:
		addTimed(sh.headerDeletes, header, val.Header)
	default:
		return store.ErrInvalidSysMeta
	}
	return nil
}

func (s *Store) RegisterStoreElement(
	_ context.Context,
	header holohash.HeaderHash,
) error {
	sh := shardFor(s, header)
	sh.mu.Lock()
	sh.storedElements[header] = struct{}{}
	sh.mu.Unlock()
	return nil
}

func (s *Store) RegisterLinkAdd(_ context.Context, val model.LinkMetaVal) error {
	sh := shardFor(s, val.Base)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	byAdd, ok := sh.links[val.Base]
	if !ok {
		byAdd = make(map[holohash.HeaderHash]model.LinkMetaVal)
		sh.links[val.Base] = byAdd
	}
	byAdd[val.LinkAddHash] = val
	return nil
}

func (s *Store) RegisterLinkRemove(
	_ context.Context,
	linkAdd holohash.HeaderHash,
	remove model.TimedHeaderHash,
) error {
	sh := shardFor(s, linkAdd)
	sh.mu.Lock()
	addTimed(sh.linkRemoves, linkAdd, remove)
	sh.mu.Unlock()
	return nil
}

func (s *Store) RegisterStatus(
	_ context.Context,
	entry holohash.EntryHash,
	status model.EntryDhtStatus,
) error {
	sh := shardFor(s, entry)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if status == model.StatusLive {
		delete(sh.status, entry)
		return nil
	}
	sh.status[entry] = status
	return nil
}

var (
	_ store.ElementStore  = (*Store)(nil)
	_ store.MetadataStore = (*Store)(nil)
)
