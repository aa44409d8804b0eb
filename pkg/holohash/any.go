package holohash

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// AnyDhtHash addresses something stored on the DHT, either an entry or a
// header. The role is known only at runtime and is checked on every
// conversion back to a typed hash.
type AnyDhtHash struct {
	role Role
	core [CoreSize]byte
}

// EntryAddress wraps an entry hash as a DHT address.
func EntryAddress(h EntryHash) AnyDhtHash { // A
	return AnyDhtHash{role: RoleEntry, core: h.core}
}

// HeaderAddress wraps a header hash as a DHT address.
func HeaderAddress(h HeaderHash) AnyDhtHash { // A
	return AnyDhtHash{role: RoleHeader, core: h.core}
}

// AnyDhtFromBytes decodes a prefixed hash whose role must be Entry or
// Header.
func AnyDhtFromBytes(b []byte) (AnyDhtHash, error) { // A
	var a AnyDhtHash
	err := a.UnmarshalBinary(b)
	return a, err
}

// ParseAnyDht decodes the string form of an entry or header hash.
func ParseAnyDht(s string) (AnyDhtHash, error) { // A
	b, err := decodeString(s)
	if err != nil {
		return AnyDhtHash{}, err
	}
	return AnyDhtFromBytes(b)
}

// Role returns RoleEntry or RoleHeader. The zero value has no role.
func (a AnyDhtHash) Role() Role { // A
	return a.role
}

// AsEntry returns the entry hash when a addresses an entry.
func (a AnyDhtHash) AsEntry() (EntryHash, bool) { // A
	if a.role != RoleEntry {
		return EntryHash{}, false
	}
	return EntryHash{core: a.core}, true
}

// AsHeader returns the header hash when a addresses a header.
func (a AnyDhtHash) AsHeader() (HeaderHash, bool) { // A
	if a.role != RoleHeader {
		return HeaderHash{}, false
	}
	return HeaderHash{core: a.core}, true
}

func (a AnyDhtHash) IsZero() bool { // A
	return a.role == 0
}

func (a AnyDhtHash) Bytes() []byte { // A
	if a.role == 0 {
		return nil
	}
	p := a.role.Prefix()
	out := make([]byte, 0, Size)
	out = append(out, p[:]...)
	return append(out, a.core[:]...)
}

func (a AnyDhtHash) Hex() string { // A
	return fmt.Sprintf("%x", a.core[:])
}

func (a AnyDhtHash) String() string { // A
	switch a.role {
	case RoleEntry:
		h, _ := a.AsEntry()
		return h.String()
	case RoleHeader:
		h, _ := a.AsHeader()
		return h.String()
	default:
		return "AnyDhtHash(zero)"
	}
}

func (a AnyDhtHash) MarshalBinary() ([]byte, error) { // A
	return a.Bytes(), nil
}

func (a *AnyDhtHash) UnmarshalBinary(b []byte) error { // A
	if len(b) != Size {
		return fmt.Errorf(
			"%w: %d bytes, want %d",
			ErrInvalidLength, len(b), Size,
		)
	}
	role, err := RoleFromPrefix(b[:PrefixSize])
	if err != nil {
		return err
	}
	if role != RoleEntry && role != RoleHeader {
		return fmt.Errorf(
			"%w: %s is not a DHT address",
			ErrPrefixMismatch, role,
		)
	}
	core := b[PrefixSize:]
	loc := location(core[:DigestSize])
	if !bytes.Equal(loc[:], core[DigestSize:]) {
		return ErrBadLocation
	}
	a.role = role
	copy(a.core[:], core)
	return nil
}

func (a AnyDhtHash) EncodeMsgpack(enc *msgpack.Encoder) error { // A
	return enc.EncodeBytes(a.Bytes())
}

func (a *AnyDhtHash) DecodeMsgpack(dec *msgpack.Decoder) error { // A
	b, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*a = AnyDhtHash{}
		return nil
	}
	return a.UnmarshalBinary(b)
}
