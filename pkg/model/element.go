package model

import (
	"crypto/ed25519"
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/vmihailenco/msgpack/v5"
)

// Signature is an ed25519 signature over the canonical header bytes.
type Signature [ed25519.SignatureSize]byte

// SignedHeader is a header with its author's signature.
type SignedHeader struct {
	Header    Header
	Signature Signature
}

type signedHeaderWire struct {
	Header    headerEnvelope `msgpack:"header"`
	Signature Signature      `msgpack:"signature"`
}

func (s SignedHeader) EncodeMsgpack(enc *msgpack.Encoder) error {
	env, err := envelopeOf(s.Header)
	if err != nil {
		return err
	}
	return enc.Encode(signedHeaderWire{Header: env, Signature: s.Signature})
}

func (s *SignedHeader) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w signedHeaderWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	h, err := w.Header.header()
	if err != nil {
		return err
	}
	s.Header = h
	s.Signature = w.Signature
	return nil
}

// SignedHeaderHashed is a signed header together with its address. The
// address is always computed from the header, also when decoding.
type SignedHeaderHashed struct {
	signed SignedHeader
	hash   holohash.HeaderHash
}

// NewSignedHeaderHashed hashes the header of s.
func NewSignedHeaderHashed(s SignedHeader) (SignedHeaderHashed, error) {
	if s.Header == nil {
		return SignedHeaderHashed{}, fmt.Errorf("%w: nil header", ErrUnknownHeaderType)
	}
	h, err := HashHeader(s.Header)
	if err != nil {
		return SignedHeaderHashed{}, err
	}
	return SignedHeaderHashed{signed: s, hash: h}, nil
}

// Sign signs h with priv and returns the hashed result.
func Sign(priv ed25519.PrivateKey, h Header) (SignedHeaderHashed, error) {
	b, err := EncodeHeader(h)
	if err != nil {
		return SignedHeaderHashed{}, err
	}
	var sig Signature
	copy(sig[:], ed25519.Sign(priv, b))
	return NewSignedHeaderHashed(SignedHeader{Header: h, Signature: sig})
}

func (s SignedHeaderHashed) Hash() holohash.HeaderHash  { return s.hash }
func (s SignedHeaderHashed) Header() Header             { return s.signed.Header }
func (s SignedHeaderHashed) Signature() Signature       { return s.signed.Signature }
func (s SignedHeaderHashed) SignedHeader() SignedHeader { return s.signed }

// Timed returns the ordering key of the header.
func (s SignedHeaderHashed) Timed() TimedHeaderHash {
	return TimedHeaderHash{
		Timestamp:  s.signed.Header.Common().Timestamp,
		HeaderHash: s.hash,
	}
}

// Verify checks the signature against the header author.
func (s SignedHeaderHashed) Verify() bool {
	b, err := EncodeHeader(s.signed.Header)
	if err != nil {
		return false
	}
	author := s.signed.Header.Common().Author
	return ed25519.Verify(author.Digest(), b, s.signed.Signature[:])
}

func (s SignedHeaderHashed) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(s.signed)
}

func (s *SignedHeaderHashed) DecodeMsgpack(dec *msgpack.Decoder) error {
	var signed SignedHeader
	if err := dec.Decode(&signed); err != nil {
		return err
	}
	shh, err := NewSignedHeaderHashed(signed)
	if err != nil {
		return err
	}
	*s = shh
	return nil
}

// Element is a signed header and, when held and applicable, its entry.
type Element struct {
	SignedHeader SignedHeaderHashed `msgpack:"signed_header"`
	Entry        *Entry             `msgpack:"entry,omitempty"`
}

// NewElement pairs a header with an optional entry.
func NewElement(shh SignedHeaderHashed, entry *Entry) Element {
	return Element{SignedHeader: shh, Entry: entry}
}

func (e Element) HeaderHash() holohash.HeaderHash { return e.SignedHeader.Hash() }
func (e Element) Header() Header                  { return e.SignedHeader.Header() }

// EncodeElement returns the msgpack form used by the stores.
func EncodeElement(e Element) ([]byte, error) {
	return msgpack.Marshal(e)
}

func DecodeElement(b []byte) (Element, error) {
	var e Element
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Element{}, fmt.Errorf("decode element: %w", err)
	}
	return e, nil
}
