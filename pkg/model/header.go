package model

import (
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/vmihailenco/msgpack/v5"
)

// HeaderType tags the concrete type of a Header.
type HeaderType uint8

const (
	HeaderDna HeaderType = iota + 1
	HeaderCreate
	HeaderUpdate
	HeaderDelete
	HeaderCreateLink
	HeaderDeleteLink
)

func (t HeaderType) String() string {
	switch t {
	case HeaderDna:
		return "Dna"
	case HeaderCreate:
		return "Create"
	case HeaderUpdate:
		return "Update"
	case HeaderDelete:
		return "Delete"
	case HeaderCreateLink:
		return "CreateLink"
	case HeaderDeleteLink:
		return "DeleteLink"
	default:
		return fmt.Sprintf("HeaderType(%d)", uint8(t))
	}
}

// Header is one record of an agent's source chain. The concrete types are
// Dna, Create, Update, Delete, CreateLink and DeleteLink.
type Header interface {
	Type() HeaderType
	Common() HeaderCommon
	// EntryData returns the entry a Create or Update header carries.
	EntryData() (holohash.EntryHash, EntryType, bool)
	isHeader()
}

// HeaderCommon holds the fields every header has.
type HeaderCommon struct {
	Author     holohash.AgentPubKey `msgpack:"author"`
	Timestamp  Timestamp            `msgpack:"timestamp"`
	HeaderSeq  uint32               `msgpack:"header_seq"`
	PrevHeader holohash.HeaderHash  `msgpack:"prev_header,omitempty"`
}

func (c HeaderCommon) Common() HeaderCommon { return c }

func (HeaderCommon) EntryData() (holohash.EntryHash, EntryType, bool) {
	return holohash.EntryHash{}, EntryType{}, false
}

func (HeaderCommon) isHeader() {}

// Dna is the first header of every chain.
type Dna struct {
	HeaderCommon `msgpack:"common"`
	Hash         holohash.DnaHash `msgpack:"hash"`
}

func (Dna) Type() HeaderType { return HeaderDna }

// Create publishes a new entry.
type Create struct {
	HeaderCommon `msgpack:"common"`
	EntryType    EntryType          `msgpack:"entry_type"`
	EntryHash    holohash.EntryHash `msgpack:"entry_hash"`
}

func (Create) Type() HeaderType { return HeaderCreate }

func (c Create) EntryData() (holohash.EntryHash, EntryType, bool) {
	return c.EntryHash, c.EntryType, true
}

// Update publishes a new entry that replaces an earlier one.
type Update struct {
	HeaderCommon          `msgpack:"common"`
	OriginalHeaderAddress holohash.HeaderHash `msgpack:"original_header_address"`
	OriginalEntryAddress  holohash.EntryHash  `msgpack:"original_entry_address"`
	EntryType             EntryType           `msgpack:"entry_type"`
	EntryHash             holohash.EntryHash  `msgpack:"entry_hash"`
}

func (Update) Type() HeaderType { return HeaderUpdate }

func (u Update) EntryData() (holohash.EntryHash, EntryType, bool) {
	return u.EntryHash, u.EntryType, true
}

// Delete tombstones a Create or Update header and, through it, its entry.
type Delete struct {
	HeaderCommon        `msgpack:"common"`
	DeletesAddress      holohash.HeaderHash `msgpack:"deletes_address"`
	DeletesEntryAddress holohash.EntryHash  `msgpack:"deletes_entry_address"`
}

func (Delete) Type() HeaderType { return HeaderDelete }

// CreateLink adds a link from a base entry to a target entry.
type CreateLink struct {
	HeaderCommon  `msgpack:"common"`
	BaseAddress   holohash.EntryHash `msgpack:"base_address"`
	TargetAddress holohash.EntryHash `msgpack:"target_address"`
	ZomeID        ZomeID             `msgpack:"zome_id"`
	Tag           LinkTag            `msgpack:"tag"`
}

func (CreateLink) Type() HeaderType { return HeaderCreateLink }

// DeleteLink removes a link added by a CreateLink header.
type DeleteLink struct {
	HeaderCommon   `msgpack:"common"`
	BaseAddress    holohash.EntryHash  `msgpack:"base_address"`
	LinkAddAddress holohash.HeaderHash `msgpack:"link_add_address"`
}

func (DeleteLink) Type() HeaderType { return HeaderDeleteLink }

// headerEnvelope is the canonical encoding of a Header: the type tag and
// exactly one populated variant.
type headerEnvelope struct {
	Type       HeaderType  `msgpack:"type"`
	Dna        *Dna        `msgpack:"dna,omitempty"`
	Create     *Create     `msgpack:"create,omitempty"`
	Update     *Update     `msgpack:"update,omitempty"`
	Delete     *Delete     `msgpack:"delete,omitempty"`
	CreateLink *CreateLink `msgpack:"create_link,omitempty"`
	DeleteLink *DeleteLink `msgpack:"delete_link,omitempty"`
}

func envelopeOf(h Header) (headerEnvelope, error) {
	env := headerEnvelope{Type: h.Type()}
	switch v := h.(type) {
	case Dna:
		env.Dna = &v
	case Create:
		env.Create = &v
	case Update:
		env.Update = &v
	case Delete:
		env.Delete = &v
	case CreateLink:
		env.CreateLink = &v
	case DeleteLink:
		env.DeleteLink = &v
	default:
		return env, fmt.Errorf("%w: %T", ErrUnknownHeaderType, h)
	}
	return env, nil
}

func (env headerEnvelope) header() (Header, error) {
	switch {
	case env.Type == HeaderDna && env.Dna != nil:
		return *env.Dna, nil
	case env.Type == HeaderCreate && env.Create != nil:
		return *env.Create, nil
	case env.Type == HeaderUpdate && env.Update != nil:
		return *env.Update, nil
	case env.Type == HeaderDelete && env.Delete != nil:
		return *env.Delete, nil
	case env.Type == HeaderCreateLink && env.CreateLink != nil:
		return *env.CreateLink, nil
	case env.Type == HeaderDeleteLink && env.DeleteLink != nil:
		return *env.DeleteLink, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownHeaderType, env.Type)
	}
}

// EncodeHeader returns the canonical bytes of h.
func EncodeHeader(h Header) ([]byte, error) {
	env, err := envelopeOf(h)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(env)
}

// DecodeHeader parses bytes produced by EncodeHeader.
func DecodeHeader(b []byte) (Header, error) {
	var env headerEnvelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return env.header()
}

// HashHeader returns the address of h.
func HashHeader(h Header) (holohash.HeaderHash, error) {
	b, err := EncodeHeader(h)
	if err != nil {
		return holohash.HeaderHash{}, err
	}
	return holohash.HashContent[holohash.Header](b), nil
}

// AsCreate converts h, failing with a ConversionError for other types.
func AsCreate(h Header) (Create, error) {
	v, ok := h.(Create)
	if !ok {
		return Create{}, &ConversionError{Want: HeaderCreate, Got: h.Type()}
	}
	return v, nil
}

func AsUpdate(h Header) (Update, error) {
	v, ok := h.(Update)
	if !ok {
		return Update{}, &ConversionError{Want: HeaderUpdate, Got: h.Type()}
	}
	return v, nil
}

func AsDelete(h Header) (Delete, error) {
	v, ok := h.(Delete)
	if !ok {
		return Delete{}, &ConversionError{Want: HeaderDelete, Got: h.Type()}
	}
	return v, nil
}

func AsCreateLink(h Header) (CreateLink, error) {
	v, ok := h.(CreateLink)
	if !ok {
		return CreateLink{}, &ConversionError{Want: HeaderCreateLink, Got: h.Type()}
	}
	return v, nil
}

func AsDeleteLink(h Header) (DeleteLink, error) {
	v, ok := h.(DeleteLink)
	if !ok {
		return DeleteLink{}, &ConversionError{Want: HeaderDeleteLink, Got: h.Type()}
	}
	return v, nil
}
