package model

// Details is the full CRUD view of an address: EntryDetails for entries,
// ElementDetails for headers.
type Details interface {
	isDetails()
}

// EntryDetails lists every header, delete and update known for an entry
// together with its derived status.
type EntryDetails struct {
	Entry   Entry
	Headers []Header
	Deletes []Delete
	Updates []Update
	Status  EntryDhtStatus
}

// ElementDetails is an element and the deletes registered against its
// header.
type ElementDetails struct {
	Element Element
	Deletes []Delete
}

func (*EntryDetails) isDetails()   {}
func (*ElementDetails) isDetails() {}
