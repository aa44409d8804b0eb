package model

import (
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/vmihailenco/msgpack/v5"
)

// EntrySizeLimit is the largest App entry payload that can be created.
const EntrySizeLimit = 16 * 1000 * 1000

// EntryKind tags the variant held by an Entry.
type EntryKind uint8

const (
	EntryAgent EntryKind = iota + 1
	EntryApp
	EntryCapClaim
	EntryCapGrant
)

func (k EntryKind) String() string {
	switch k {
	case EntryAgent:
		return "Agent"
	case EntryApp:
		return "App"
	case EntryCapClaim:
		return "CapClaim"
	case EntryCapGrant:
		return "CapGrant"
	default:
		return fmt.Sprintf("EntryKind(%d)", uint8(k))
	}
}

// CapSecret is the shared secret of a capability grant.
type CapSecret [64]byte

// CapAccess selects who may exercise a capability grant.
type CapAccess uint8

const (
	AccessUnrestricted CapAccess = iota
	AccessTransferable
	AccessAssigned
)

// GrantedFunction names a zome function covered by a grant.
type GrantedFunction struct {
	Zome string `msgpack:"zome"`
	Fn   string `msgpack:"fn"`
}

// CapGrant grants remote agents the right to call functions.
type CapGrant struct {
	Tag       string                 `msgpack:"tag"`
	Access    CapAccess              `msgpack:"access"`
	Secret    *CapSecret             `msgpack:"secret,omitempty"`
	Assignees []holohash.AgentPubKey `msgpack:"assignees,omitempty"`
	Functions []GrantedFunction      `msgpack:"functions,omitempty"`
}

// CapClaim records a grant received from another agent.
type CapClaim struct {
	Tag     string               `msgpack:"tag"`
	Grantor holohash.AgentPubKey `msgpack:"grantor"`
	Secret  CapSecret            `msgpack:"secret"`
}

// Entry is the content portion of a chain element. Exactly one of the
// variant fields matching Kind is set.
type Entry struct {
	Kind     EntryKind            `msgpack:"kind"`
	Agent    holohash.AgentPubKey `msgpack:"agent,omitempty"`
	App      []byte               `msgpack:"app,omitempty"`
	CapClaim *CapClaim            `msgpack:"cap_claim,omitempty"`
	CapGrant *CapGrant            `msgpack:"cap_grant,omitempty"`
}

// NewAgentEntry returns the Agent entry of key.
func NewAgentEntry(key holohash.AgentPubKey) Entry {
	return Entry{Kind: EntryAgent, Agent: key}
}

// NewAppEntry wraps application bytes. Payloads above EntrySizeLimit are
// rejected.
func NewAppEntry(payload []byte) (Entry, error) {
	if len(payload) > EntrySizeLimit {
		return Entry{}, fmt.Errorf(
			"%w: %d bytes, limit %d",
			ErrEntryTooLarge, len(payload), EntrySizeLimit,
		)
	}
	b := make([]byte, len(payload))
	copy(b, payload)
	return Entry{Kind: EntryApp, App: b}, nil
}

func NewCapClaimEntry(c CapClaim) Entry {
	return Entry{Kind: EntryCapClaim, CapClaim: &c}
}

func NewCapGrantEntry(g CapGrant) Entry {
	return Entry{Kind: EntryCapGrant, CapGrant: &g}
}

// Bytes returns the canonical msgpack encoding of the entry.
func (e Entry) Bytes() ([]byte, error) {
	return msgpack.Marshal(e)
}

// Hash returns the entry address. An Agent entry is pre-hashed: its
// address carries the agent key bytes so that looking up an agent key as
// an entry finds the Agent entry.
func (e Entry) Hash() holohash.EntryHash {
	if e.Kind == EntryAgent {
		return holohash.AgentToEntry(e.Agent)
	}
	b, err := e.Bytes()
	if err != nil {
		// Entry holds only msgpack-encodable fields
		panic(fmt.Sprintf("model: encode entry: %v", err))
	}
	return holohash.HashContent[holohash.Entry](b)
}

// Size is the payload size used for the entry size limit.
func (e Entry) Size() int {
	if e.Kind == EntryApp {
		return len(e.App)
	}
	return 0
}

// GrantView is the capability an entry grants. ChainAuthor is set for
// Agent entries, Remote for CapGrant entries.
type GrantView struct {
	ChainAuthor *holohash.AgentPubKey
	Remote      *CapGrant
}

// AsCapGrant returns the capability granted by the entry, if any.
func (e Entry) AsCapGrant() (GrantView, bool) {
	switch e.Kind {
	case EntryAgent:
		key := e.Agent
		return GrantView{ChainAuthor: &key}, true
	case EntryCapGrant:
		return GrantView{Remote: e.CapGrant}, e.CapGrant != nil
	default:
		return GrantView{}, false
	}
}

// AsCapClaim returns the claim held by a CapClaim entry.
func (e Entry) AsCapClaim() (*CapClaim, bool) {
	if e.Kind != EntryCapClaim || e.CapClaim == nil {
		return nil, false
	}
	return e.CapClaim, true
}

// EntryType is the type information a header records about its entry.
type EntryType struct {
	Kind    EntryKind `msgpack:"kind"`
	ZomeID  ZomeID    `msgpack:"zome_id,omitempty"`
	AppID   uint8     `msgpack:"app_id,omitempty"`
	Private bool      `msgpack:"private,omitempty"`
}

// EntryTypeOf returns the default entry type for e.
func EntryTypeOf(e Entry) EntryType {
	return EntryType{Kind: e.Kind}
}
