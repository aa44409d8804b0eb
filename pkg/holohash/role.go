// Package holohash implements role-tagged content addresses.
//
// A hash is a 36 byte core (32 byte BLAKE2b-256 digest followed by 4 DHT
// location bytes) paired with a role. The role is carried by the Go type
// (HoloHash[Entry] and HoloHash[Header] are different types) and by a
// fixed 3 byte prefix in every serialized form. Decoding checks the prefix
// against the expected role and fails instead of reinterpreting bytes.
//
// Two hashes over identical bytes but with different roles are distinct
// values. The only sanctioned re-tagging is between an agent key and the
// hash of that agent's Agent entry (AgentToEntry / EntryToAgent), which are
// defined to share their bytes.
package holohash

import (
	"errors"
	"fmt"
)

// Role identifies what a hash addresses.
type Role uint8

const (
	RoleAgent Role = iota + 1
	RoleEntry
	RoleDhtOp
	RoleDna
	RoleNetID
	RoleHeader
	RoleWasm
)

// PrefixSize is the length of the role prefix in serialized hashes.
const PrefixSize = 3

var (
	ErrUnknownPrefix  = errors.New("holohash: unknown prefix")
	ErrPrefixMismatch = errors.New("holohash: prefix does not match role")
	ErrInvalidLength  = errors.New("holohash: invalid length")
	ErrBadLocation    = errors.New("holohash: location bytes do not match digest")
	ErrUnknownRole    = errors.New("holohash: unknown role")
)

// prefixes is indexed by Role. Index 0 is unused.
var prefixes = [...][PrefixSize]byte{
	RoleAgent:  {0x84, 0x20, 0x24}, // uhCAk
	RoleEntry:  {0x84, 0x21, 0x24}, // uhCEk
	RoleDhtOp:  {0x84, 0x24, 0x24}, // uhCQk
	RoleDna:    {0x84, 0x2d, 0x24}, // uhC0k
	RoleNetID:  {0x84, 0x22, 0x24}, // uhCIk
	RoleHeader: {0x84, 0x29, 0x24}, // uhCkk
	RoleWasm:   {0x84, 0x2a, 0x24}, // uhCok
}

var roleNames = [...]string{
	RoleAgent:  "AgentPubKey",
	RoleEntry:  "EntryHash",
	RoleDhtOp:  "DhtOpHash",
	RoleDna:    "DnaHash",
	RoleNetID:  "NetIdHash",
	RoleHeader: "HeaderHash",
	RoleWasm:   "WasmHash",
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool { // A
	return r >= RoleAgent && r <= RoleWasm
}

// Prefix returns the 3 byte serialization prefix of the role.
func (r Role) Prefix() [PrefixSize]byte { // A
	if !r.Valid() {
		panic(fmt.Sprintf("holohash: prefix of invalid role %d", r))
	}
	return prefixes[r]
}

func (r Role) String() string { // A
	if !r.Valid() {
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
	return roleNames[r]
}

// RoleFromPrefix returns the role whose prefix is p.
func RoleFromPrefix(p []byte) (Role, error) { // A
	if len(p) < PrefixSize {
		return 0, fmt.Errorf("%w: prefix of %d bytes", ErrInvalidLength, len(p))
	}
	for r := RoleAgent; r <= RoleWasm; r++ {
		pr := prefixes[r]
		if p[0] == pr[0] && p[1] == pr[1] && p[2] == pr[2] {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %x", ErrUnknownPrefix, p[:PrefixSize])
}

// HashType is implemented by the marker types that parameterize HoloHash.
type HashType interface {
	Role() Role
}

// Marker types. They carry no data.
type (
	Agent  struct{}
	Entry  struct{}
	DhtOp  struct{}
	Dna    struct{}
	NetID  struct{}
	Header struct{}
	Wasm   struct{}
)

func (Agent) Role() Role  { return RoleAgent }
func (Entry) Role() Role  { return RoleEntry }
func (DhtOp) Role() Role  { return RoleDhtOp }
func (Dna) Role() Role    { return RoleDna }
func (NetID) Role() Role  { return RoleNetID }
func (Header) Role() Role { return RoleHeader }
func (Wasm) Role() Role   { return RoleWasm }
