package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
)

const agentFile = "agent.yaml"

// agentState is the local author: its key seed and the head of its chain.
type agentState struct {
	Seed string `yaml:"seed"`
	Seq  uint32 `yaml:"seq"`
	Prev string `yaml:"prev,omitempty"`

	path string
	priv ed25519.PrivateKey
	key  holohash.AgentPubKey
	prev holohash.HeaderHash
}

// loadAgent reads the agent of dataDir, creating a fresh one on first use.
func loadAgent(dataDir string) (*agentState, error) {
	a := &agentState{path: filepath.Join(dataDir, agentFile)}
	data, err := os.ReadFile(a.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		seed := make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("generate agent seed: %w", err)
		}
		a.Seed = hex.EncodeToString(seed)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", a.path, err)
	default:
		if err := yaml.Unmarshal(data, a); err != nil {
			return nil, fmt.Errorf("parse %s: %w", a.path, err)
		}
	}

	seed, err := hex.DecodeString(a.Seed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%s: invalid seed", a.path)
	}
	a.priv = ed25519.NewKeyFromSeed(seed)
	if a.key, err = holohash.NewAgentPubKey(a.priv.Public().(ed25519.PublicKey)); err != nil {
		return nil, err
	}
	if a.Prev != "" {
		if a.prev, err = holohash.Parse[holohash.Header](a.Prev); err != nil {
			return nil, fmt.Errorf("%s: chain head: %w", a.path, err)
		}
	}
	return a, nil
}

func (a *agentState) save() error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(a.path, data, 0o600)
}

func (a *agentState) common() model.HeaderCommon {
	return model.HeaderCommon{
		Author:     a.key,
		Timestamp:  model.Now(),
		HeaderSeq:  a.Seq,
		PrevHeader: a.prev,
	}
}

// sign signs h and advances the chain head. The head is persisted by save.
func (a *agentState) sign(h model.Header, entry *model.Entry) (model.Element, error) {
	shh, err := model.Sign(a.priv, h)
	if err != nil {
		return model.Element{}, err
	}
	a.Seq++
	a.prev = shh.Hash()
	a.Prev = a.prev.String()
	return model.NewElement(shh, entry), nil
}
