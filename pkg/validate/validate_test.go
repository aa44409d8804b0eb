package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
)

func dep(s string) holohash.EntryHash {
	return holohash.HashContent[holohash.Entry]([]byte(s))
}

func TestFold(t *testing.T) {
	a, b := dep("a"), dep("b")
	cases := []struct {
		name string
		in   []Result
		want Result
	}{
		{"empty", nil, ValidResult()},
		{"all valid", []Result{ValidResult(), ValidResult()}, ValidResult()},
		{"unresolved over valid", []Result{ValidResult(), Unresolved(a)}, Unresolved(a)},
		{"invalid over unresolved", []Result{InvalidResult("bad"), Unresolved(a)}, InvalidResult("bad")},
		{"invalid after unresolved", []Result{Unresolved(a), InvalidResult("bad")}, InvalidResult("bad")},
		{"last unresolved kept", []Result{Unresolved(a), Unresolved(b)}, Unresolved(b)},
		{"last invalid kept", []Result{InvalidResult("x"), InvalidResult("y")}, InvalidResult("y")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Fold(tc.in))
		})
	}
}

func TestFoldPrecedence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		outcomes := rapid.SliceOf(rapid.SampledFrom([]Outcome{Valid, Invalid, UnresolvedDependencies})).Draw(t, "outcomes")
		results := make([]Result, len(outcomes))
		var sawInvalid, sawUnresolved bool
		for i, o := range outcomes {
			results[i] = Result{Outcome: o}
			sawInvalid = sawInvalid || o == Invalid
			sawUnresolved = sawUnresolved || o == UnresolvedDependencies
		}
		got := Fold(results).Outcome
		switch {
		case sawInvalid:
			if got != Invalid {
				t.Fatalf("got %s, want Invalid", got)
			}
		case sawUnresolved:
			if got != UnresolvedDependencies {
				t.Fatalf("got %s, want UnresolvedDependencies", got)
			}
		default:
			if got != Valid {
				t.Fatalf("got %s, want Valid", got)
			}
		}
	})
}

func TestStatus(t *testing.T) {
	assert.Equal(t, model.StatusLive, ValidResult().Status())
	assert.Equal(t, model.StatusRejected, InvalidResult("no").Status())
	assert.Equal(t, model.StatusPending, Unresolved(dep("x")).Status())
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	entry, err := model.NewAppEntry([]byte("payload"))
	require.NoError(t, err)

	assert.Equal(t, Valid, r.Validate(ctx, entry).Outcome)

	r.Register("validate", func(context.Context, model.Entry) Result { return ValidResult() })
	r.Register("validate_agent", func(context.Context, model.Entry) Result { return InvalidResult("agents only") })
	assert.Equal(t, Valid, r.Validate(ctx, entry).Outcome, "agent callback does not apply to app entries")

	r.Register("validate_entry", func(_ context.Context, e model.Entry) Result {
		if len(e.App) < 10 {
			return InvalidResult("too short")
		}
		return ValidResult()
	})
	got := r.Validate(ctx, entry)
	assert.Equal(t, Invalid, got.Outcome)
	assert.Equal(t, "too short", got.Reason)
	assert.Equal(t, []string{"validate", "validate_agent", "validate_entry"}, r.Names())
}

func TestCallbackNames(t *testing.T) {
	grant := model.NewCapGrantEntry(model.CapGrant{})
	assert.Equal(t, []string{"validate", "validate_cap_grant"}, CallbackNames(grant))
	claim := model.NewCapClaimEntry(model.CapClaim{})
	assert.Equal(t, []string{"validate", "validate_cap_claim"}, CallbackNames(claim))
}
