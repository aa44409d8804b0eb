// Package model defines the chain data handled by the cascade: entries,
// headers, signed elements, entry groups and the CRUD views (details,
// links) assembled from metadata.
//
// Entries and headers are addressed by role-tagged hashes from
// pkg/holohash. Their canonical byte form is msgpack; the hash of a header
// or a non-agent entry is the BLAKE2b-256 of that form.
package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEntryTooLarge      = errors.New("model: entry exceeds size limit")
	ErrUnknownHeaderType  = errors.New("model: unknown header type")
	ErrGroupEntryMismatch = errors.New("model: header does not reference group entry")
	ErrEmptyGroup         = errors.New("model: element group without headers")
)

// ConversionError reports a header that is not of the expected concrete
// type.
type ConversionError struct {
	Want HeaderType
	Got  HeaderType
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("model: expected %s header, got %s", e.Want, e.Got)
}

// Timestamp is a point in time in microseconds since the unix epoch.
type Timestamp int64

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime converts t, dropping sub-microsecond precision.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// Time converts the timestamp back to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.UnixMicro(int64(ts)).UTC()
}

func (ts Timestamp) String() string {
	return ts.Time().Format(time.RFC3339Nano)
}
