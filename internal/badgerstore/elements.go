package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	prefixHeader = "el:hdr:"
	prefixEntry  = "el:ent:"
)

func headerKey(h holohash.HeaderHash) []byte { return []byte(prefixHeader + h.Hex()) }
func entryKey(h holohash.EntryHash) []byte   { return []byte(prefixEntry + h.Hex()) }

// getValue copies the value of key, returning nil when absent.
func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func readHeader(txn *badger.Txn, hash holohash.HeaderHash) (*model.SignedHeaderHashed, error) {
	raw, err := getValue(txn, headerKey(hash))
	if err != nil || raw == nil {
		return nil, err
	}
	var shh model.SignedHeaderHashed
	if err := msgpack.Unmarshal(raw, &shh); err != nil {
		return nil, fmt.Errorf("decode header %s: %w", hash, err)
	}
	return &shh, nil
}

func readEntry(txn *badger.Txn, hash holohash.EntryHash) (*model.Entry, error) {
	raw, err := getValue(txn, entryKey(hash))
	if err != nil || raw == nil {
		return nil, err
	}
	plain, err := decompressWithZstd(raw)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", hash, err)
	}
	var e model.Entry
	if err := msgpack.Unmarshal(plain, &e); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", hash, err)
	}
	return &e, nil
}

func (s *Store) GetHeader(
	_ context.Context,
	hash holohash.HeaderHash,
) (*model.SignedHeaderHashed, error) {
	var out *model.SignedHeaderHashed
	err := s.view(func(txn *badger.Txn) error {
		var err error
		out, err = readHeader(txn, hash)
		return err
	})
	return out, err
}

func (s *Store) GetEntry(
	_ context.Context,
	hash holohash.EntryHash,
) (*model.Entry, error) {
	var out *model.Entry
	err := s.view(func(txn *badger.Txn) error {
		var err error
		out, err = readEntry(txn, hash)
		return err
	})
	return out, err
}

// GetElement reads the header and, in the same transaction, its entry.
func (s *Store) GetElement(
	_ context.Context,
	hash holohash.HeaderHash,
) (*model.Element, error) {
	var out *model.Element
	err := s.view(func(txn *badger.Txn) error {
		shh, err := readHeader(txn, hash)
		if err != nil || shh == nil {
			return err
		}
		var entry *model.Entry
		if eh, _, ok := shh.Header().EntryData(); ok {
			if entry, err = readEntry(txn, eh); err != nil {
				return err
			}
		}
		el := model.NewElement(*shh, entry)
		out = &el
		return nil
	})
	return out, err
}

func putHeader(txn *badger.Txn, shh model.SignedHeaderHashed) error {
	raw, err := msgpack.Marshal(shh)
	if err != nil {
		return fmt.Errorf("encode header %s: %w", shh.Hash(), err)
	}
	return txn.Set(headerKey(shh.Hash()), raw)
}

func putEntry(txn *badger.Txn, e model.Entry) error {
	hash := e.Hash()
	if _, err := txn.Get(entryKey(hash)); err == nil {
		// content addressed, already stored
		return nil
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	plain, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", hash, err)
	}
	packed, err := compressWithZstd(plain)
	if err != nil {
		return fmt.Errorf("compress entry %s: %w", hash, err)
	}
	return txn.Set(entryKey(hash), packed)
}

func (s *Store) Put(
	_ context.Context,
	shh model.SignedHeaderHashed,
	entry *model.Entry,
) error {
	return s.update(func(txn *badger.Txn) error {
		if err := putHeader(txn, shh); err != nil {
			return err
		}
		if entry != nil {
			return putEntry(txn, *entry)
		}
		return nil
	})
}

// PutElementGroup writes the whole group in one transaction.
func (s *Store) PutElementGroup(_ context.Context, g model.ElementGroup) error {
	return s.update(func(txn *badger.Txn) error {
		for _, shh := range g.Headers() {
			if err := putHeader(txn, shh); err != nil {
				return err
			}
		}
		return putEntry(txn, g.Entry())
	})
}
