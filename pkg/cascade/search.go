package cascade

import (
	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
)

type searchState uint8

const (
	// searchFound: the element is held locally.
	searchFound searchState = iota
	// searchContinue: the entry is live but its oldest header has to be
	// fetched by header address.
	searchContinue
	// searchNotInCascade: the entry is not live, nothing to return.
	searchNotInCascade
)

// search is the outcome of resolving an entry against local metadata.
type search struct {
	state   searchState
	element *model.Element
	next    holohash.HeaderHash
}

func found(el *model.Element) search {
	return search{state: searchFound, element: el}
}

func continueWith(h holohash.HeaderHash) search {
	return search{state: searchContinue, next: h}
}

func notInCascade() search {
	return search{state: searchNotInCascade}
}
