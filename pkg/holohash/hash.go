package holohash

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

const (
	// DigestSize is the length of the content digest.
	DigestSize = 32
	// LocationSize is the length of the DHT location suffix.
	LocationSize = 4
	// CoreSize is the length of a hash without its prefix.
	CoreSize = DigestSize + LocationSize
	// Size is the length of a serialized hash.
	Size = PrefixSize + CoreSize
)

// HoloHash is a content address tagged with the role T.
type HoloHash[T HashType] struct {
	core [CoreSize]byte
}

type (
	AgentPubKey = HoloHash[Agent]
	EntryHash   = HoloHash[Entry]
	HeaderHash  = HoloHash[Header]
	DhtOpHash   = HoloHash[DhtOp]
	DnaHash     = HoloHash[Dna]
	NetIDHash   = HoloHash[NetID]
	WasmHash    = HoloHash[Wasm]
)

// HashContent hashes content with BLAKE2b-256 and tags it with role T.
func HashContent[T HashType](content []byte) HoloHash[T] { // A
	digest := blake2b.Sum256(content)
	h, _ := FromDigest[T](digest[:])
	return h
}

// FromDigest builds a hash from a 32 byte digest, computing the location
// bytes.
func FromDigest[T HashType](digest []byte) (HoloHash[T], error) { // A
	var h HoloHash[T]
	if len(digest) != DigestSize {
		return h, fmt.Errorf(
			"%w: digest of %d bytes, want %d",
			ErrInvalidLength, len(digest), DigestSize,
		)
	}
	copy(h.core[:DigestSize], digest)
	loc := location(digest)
	copy(h.core[DigestSize:], loc[:])
	return h, nil
}

// FromCore builds a hash from a 36 byte core (digest and location). The
// location bytes must match the digest.
func FromCore[T HashType](core []byte) (HoloHash[T], error) { // A
	var h HoloHash[T]
	if len(core) != CoreSize {
		return h, fmt.Errorf(
			"%w: core of %d bytes, want %d",
			ErrInvalidLength, len(core), CoreSize,
		)
	}
	copy(h.core[:], core)
	if h.IsZero() {
		// the zero hash marks an absent optional address
		return h, nil
	}
	loc := location(core[:DigestSize])
	if !bytes.Equal(loc[:], core[DigestSize:]) {
		return HoloHash[T]{}, ErrBadLocation
	}
	return h, nil
}

// FromBytes decodes a prefixed 39 byte hash. It fails when the prefix
// belongs to another role.
func FromBytes[T HashType](b []byte) (HoloHash[T], error) { // A
	var h HoloHash[T]
	err := h.UnmarshalBinary(b)
	return h, err
}

// Parse decodes the string form produced by String.
func Parse[T HashType](s string) (HoloHash[T], error) { // A
	b, err := decodeString(s)
	if err != nil {
		return HoloHash[T]{}, err
	}
	return FromBytes[T](b)
}

// NewAgentPubKey wraps an ed25519 public key. The key bytes are used as
// the digest directly, they are not hashed again.
func NewAgentPubKey(pub ed25519.PublicKey) (AgentPubKey, error) { // A
	return FromDigest[Agent](pub)
}

// AgentToEntry re-tags an agent key as the hash of its Agent entry.
func AgentToEntry(a AgentPubKey) EntryHash { // A
	return EntryHash{core: a.core}
}

// EntryToAgent re-tags the hash of an Agent entry as the agent key.
func EntryToAgent(e EntryHash) AgentPubKey { // A
	return AgentPubKey{core: e.core}
}

// Role returns the role of T.
func (h HoloHash[T]) Role() Role { // A
	var t T
	return t.Role()
}

// Digest returns a copy of the 32 byte digest.
func (h HoloHash[T]) Digest() []byte { // A
	out := make([]byte, DigestSize)
	copy(out, h.core[:DigestSize])
	return out
}

// Core returns a copy of the 36 byte core.
func (h HoloHash[T]) Core() []byte { // A
	out := make([]byte, CoreSize)
	copy(out, h.core[:])
	return out
}

// Location returns the DHT location of the hash.
func (h HoloHash[T]) Location() uint32 { // A
	l := h.core[DigestSize:]
	return uint32(l[0]) | uint32(l[1])<<8 | uint32(l[2])<<16 | uint32(l[3])<<24
}

// IsZero reports whether h is the zero value.
func (h HoloHash[T]) IsZero() bool { // A
	return h.core == [CoreSize]byte{}
}

// Bytes returns the prefixed serialized form.
func (h HoloHash[T]) Bytes() []byte { // A
	p := h.Role().Prefix()
	out := make([]byte, 0, Size)
	out = append(out, p[:]...)
	return append(out, h.core[:]...)
}

// Compare orders hashes of the same role by their bytes.
func (h HoloHash[T]) Compare(other HoloHash[T]) int { // A
	return bytes.Compare(h.core[:], other.core[:])
}

// String returns "u" followed by the url-safe base64 of the prefixed bytes.
func (h HoloHash[T]) String() string { // A
	return "u" + base64.RawURLEncoding.EncodeToString(h.Bytes())
}

// Hex returns the hexadecimal form of the core, mainly for storage keys.
func (h HoloHash[T]) Hex() string { // A
	return hex.EncodeToString(h.core[:])
}

func (h HoloHash[T]) MarshalBinary() ([]byte, error) { // A
	return h.Bytes(), nil
}

func (h *HoloHash[T]) UnmarshalBinary(b []byte) error { // A
	if len(b) != Size {
		return fmt.Errorf(
			"%w: %d bytes, want %d",
			ErrInvalidLength, len(b), Size,
		)
	}
	var t T
	want := t.Role().Prefix()
	if !bytes.Equal(b[:PrefixSize], want[:]) {
		got, err := RoleFromPrefix(b[:PrefixSize])
		if err != nil {
			return err
		}
		return fmt.Errorf(
			"%w: expected %s, got %s",
			ErrPrefixMismatch, t.Role(), got,
		)
	}
	core, err := FromCore[T](b[PrefixSize:])
	if err != nil {
		return err
	}
	*h = core
	return nil
}

func (h HoloHash[T]) MarshalText() ([]byte, error) { // A
	return []byte(h.String()), nil
}

func (h *HoloHash[T]) UnmarshalText(text []byte) error { // A
	parsed, err := Parse[T](string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// EncodeMsgpack writes the prefixed bytes so that canonical encodings of
// headers and entries carry the role of every embedded hash.
func (h HoloHash[T]) EncodeMsgpack(enc *msgpack.Encoder) error { // A
	return enc.EncodeBytes(h.Bytes())
}

func (h *HoloHash[T]) DecodeMsgpack(dec *msgpack.Decoder) error { // A
	b, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	return h.UnmarshalBinary(b)
}

// location folds a BLAKE2b-128 of the digest into 4 bytes.
func location(digest []byte) [LocationSize]byte {
	var out [LocationSize]byte
	hasher, err := blake2b.New(16, nil)
	if err != nil {
		// only fails for a key longer than 64 bytes
		panic(err)
	}
	hasher.Write(digest)
	sum := hasher.Sum(nil)
	for i, b := range sum {
		out[i%LocationSize] ^= b
	}
	return out
}

func decodeString(s string) ([]byte, error) {
	if len(s) == 0 || s[0] != 'u' {
		return nil, fmt.Errorf("holohash: %q is not a u-prefixed hash", s)
	}
	b, err := base64.RawURLEncoding.DecodeString(s[1:])
	if err != nil {
		return nil, fmt.Errorf("holohash: decode %q: %w", s, err)
	}
	return b, nil
}
