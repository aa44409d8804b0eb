package model

import "fmt"

// EntryDhtStatus is the liveness of an entry derived from its metadata.
type EntryDhtStatus uint8

const (
	StatusLive EntryDhtStatus = iota
	StatusDead
	StatusPending
	StatusRejected
	StatusAbandoned
	StatusConflict
	StatusWithdrawn
	StatusPurged
)

var statusNames = [...]string{
	StatusLive:      "Live",
	StatusDead:      "Dead",
	StatusPending:   "Pending",
	StatusRejected:  "Rejected",
	StatusAbandoned: "Abandoned",
	StatusConflict:  "Conflict",
	StatusWithdrawn: "Withdrawn",
	StatusPurged:    "Purged",
}

func (s EntryDhtStatus) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("EntryDhtStatus(%d)", uint8(s))
}

func (s EntryDhtStatus) IsLive() bool {
	return s == StatusLive
}

// ParseStatus is the inverse of String.
func ParseStatus(name string) (EntryDhtStatus, error) {
	for i, n := range statusNames {
		if n == name {
			return EntryDhtStatus(i), nil
		}
	}
	return 0, fmt.Errorf("model: unknown status %q", name)
}
