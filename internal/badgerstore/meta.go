package badgerstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
	"github.com/vmihailenco/msgpack/v5"
)

// Every metadata index is a key prefix. Relations are keyed by
// "<prefix><basis hex>:<header hex>" and hold the msgpack TimedHeaderHash,
// so a duplicate registration overwrites the same key with the same value.
const (
	prefixEntryHeaders  = "meta:eh:"
	prefixEntryDeletes  = "meta:ed:"
	prefixEntryUpdates  = "meta:eu:"
	prefixHeaderDeletes = "meta:hd:"
	prefixHeaderUpdates = "meta:hu:"
	prefixStoredElement = "meta:se:"
	prefixStatus        = "meta:st:"
	prefixLinkAdd       = "meta:la:"
	prefixLinkRemove    = "meta:lr:"
)

func relationPrefix(prefix, basisHex string) []byte {
	return []byte(prefix + basisHex + ":")
}

func relationKey(prefix, basisHex string, h holohash.HeaderHash) []byte {
	return []byte(prefix + basisHex + ":" + h.Hex())
}

func (s *Store) setTimed(prefix, basisHex string, h model.TimedHeaderHash) error {
	raw, err := msgpack.Marshal(h)
	if err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(relationKey(prefix, basisHex, h.HeaderHash), raw)
	})
}

func (s *Store) scanTimed(prefix, basisHex string) ([]model.TimedHeaderHash, error) {
	var out []model.TimedHeaderHash
	p := relationPrefix(prefix, basisHex)
	err := s.view(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var h model.TimedHeaderHash
				if err := msgpack.Unmarshal(v, &h); err != nil {
					return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
				}
				out = append(out, h)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return model.SortTimed(out), nil
}

func (s *Store) exists(key []byte) (bool, error) {
	found := false
	err := s.view(func(txn *badger.Txn) error {
		v, err := getValue(txn, key)
		found = v != nil
		return err
	})
	return found, err
}

func (s *Store) anyWithPrefix(p []byte) (bool, error) {
	found := false
	err := s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Seek(p)
		found = it.ValidForPrefix(p)
		return nil
	})
	return found, err
}

func (s *Store) GetHeaders(
	_ context.Context,
	entry holohash.EntryHash,
) ([]model.TimedHeaderHash, error) {
	return s.scanTimed(prefixEntryHeaders, entry.Hex())
}

func (s *Store) GetDeletesOnEntry(
	_ context.Context,
	entry holohash.EntryHash,
) ([]model.TimedHeaderHash, error) {
	return s.scanTimed(prefixEntryDeletes, entry.Hex())
}

func (s *Store) GetDeletesOnHeader(
	_ context.Context,
	header holohash.HeaderHash,
) ([]model.TimedHeaderHash, error) {
	return s.scanTimed(prefixHeaderDeletes, header.Hex())
}

func (s *Store) GetUpdates(
	_ context.Context,
	basis holohash.AnyDhtHash,
) ([]model.TimedHeaderHash, error) {
	switch basis.Role() {
	case holohash.RoleEntry:
		return s.scanTimed(prefixEntryUpdates, basis.Hex())
	case holohash.RoleHeader:
		return s.scanTimed(prefixHeaderUpdates, basis.Hex())
	default:
		return nil, nil
	}
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
	var raw []byte
	err := s.view(func(txn *badger.Txn) error {
		var err error
		raw, err = getValue(txn, []byte(prefixStatus+entry.Hex()))
		return err
	})
	if err != nil || len(raw) == 0 {
		return 0, false, err
	}
	return model.EntryDhtStatus(raw[0]), true, nil
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
	var out []model.LinkMetaVal
	p := relationPrefix(prefixLinkAdd, key.Base.Hex())
	err := s.view(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var v model.LinkMetaVal
			err := it.Item().Value(func(raw []byte) error {
				return msgpack.Unmarshal(raw, &v)
			})
			if err != nil {
				return fmt.Errorf("decode link %s: %w", it.Item().Key(), err)
			}
			if key.Matches(v) {
				out = append(out, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
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
	return s.scanTimed(prefixLinkRemove, linkAdd.Hex())
}

func (s *Store) HasRegisteredStoreElement(
	_ context.Context,
	header holohash.HeaderHash,
) (bool, error) {
	return s.exists([]byte(prefixStoredElement + header.Hex()))
}

func (s *Store) HasRegisteredStoreEntry(
	_ context.Context,
	entry holohash.EntryHash,
	header holohash.HeaderHash,
) (bool, error) {
	return s.exists(relationKey(prefixEntryHeaders, entry.Hex(), header))
}

func (s *Store) HasAnyRegisteredStoreEntry(
	_ context.Context,
	entry holohash.EntryHash,
) (bool, error) {
	return s.anyWithPrefix(relationPrefix(prefixEntryHeaders, entry.Hex()))
}

func (s *Store) RegisterRawOnEntry(
	_ context.Context,
	entry holohash.EntryHash,
	val store.SysMetaVal,
) error {
	switch val.Kind {
	case store.SysMetaNewEntryHeader:
		return s.setTimed(prefixEntryHeaders, entry.Hex(), val.Header)
	case store.SysMetaUpdate:
		return s.setTimed(prefixEntryUpdates, entry.Hex(), val.Header)
	case store.SysMetaDelete:
		return s.setTimed(prefixEntryDeletes, entry.Hex(), val.Header)
	default:
		return fmt.Errorf("%w: %s on entry", store.ErrInvalidSysMeta, val.Kind)
	}
}

func (s *Store) RegisterRawOnHeader(
	_ context.Context,
	header holohash.HeaderHash,
	val store.SysMetaVal,
) error {
	switch val.Kind {
	case store.SysMetaUpdate:
		return s.setTimed(prefixHeaderUpdates, header.Hex(), val.Header)
	case store.SysMetaDelete:
		return s.setTimed(prefixHeaderDeletes, header.Hex(), val.Header)
	default:
		return fmt.Errorf("%w: %s on header", store.ErrInvalidSysMeta, val.Kind)
	}
}

func (s *Store) RegisterStoreElement(
	_ context.Context,
	header holohash.HeaderHash,
) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixStoredElement+header.Hex()), []byte{1})
	})
}

func (s *Store) RegisterLinkAdd(_ context.Context, val model.LinkMetaVal) error {
	raw, err := msgpack.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode link %s: %w", val.LinkAddHash, err)
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(relationKey(prefixLinkAdd, val.Base.Hex(), val.LinkAddHash), raw)
	})
}

func (s *Store) RegisterLinkRemove(
	_ context.Context,
	linkAdd holohash.HeaderHash,
	remove model.TimedHeaderHash,
) error {
	return s.setTimed(prefixLinkRemove, linkAdd.Hex(), remove)
}

func (s *Store) RegisterStatus(
	_ context.Context,
	entry holohash.EntryHash,
	status model.EntryDhtStatus,
) error {
	key := []byte(prefixStatus + entry.Hex())
	return s.update(func(txn *badger.Txn) error {
		if status == model.StatusLive {
			return txn.Delete(key)
		}
		return txn.Set(key, []byte{byte(status)})
	})
}
