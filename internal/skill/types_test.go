package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierRankOrdering(t *testing.T) {
	assert.Less(t, TierVerified.Rank(), TierCurated.Rank())
	assert.Less(t, TierCurated.Rank(), TierCommunity.Rank())
	assert.Less(t, TierCommunity.Rank(), TierExperimental.Rank())
	assert.Less(t, TierExperimental.Rank(), TierUnknown.Rank())
	assert.Less(t, TierUnknown.Rank(), TierLocal.Rank())
}

func TestConfidenceLower(t *testing.T) {
	assert.Equal(t, ConfidenceMedium, ConfidenceHigh.Lower())
	assert.Equal(t, ConfidenceLow, ConfidenceMedium.Lower())
	assert.Equal(t, ConfidenceLow, ConfidenceLow.Lower())
}

func TestRequiredApprovalsFor(t *testing.T) {
	assert.Equal(t, 2, RequiredApprovalsFor(SeverityCritical))
	assert.Equal(t, 1, RequiredApprovalsFor(SeverityHigh))
	assert.Equal(t, 1, RequiredApprovalsFor(SeverityLow))
}

func TestCompatibilityIntersects(t *testing.T) {
	unknown := Compatibility{}
	want := Compatibility{LLMs: []string{"claude"}}
	assert.True(t, unknown.Intersects(want), "unknown compatibility should pass any filter")

	declared := Compatibility{LLMs: []string{"gpt-4"}}
	assert.False(t, declared.Intersects(want))

	overlap := Compatibility{LLMs: []string{"claude", "gpt-4"}}
	assert.True(t, overlap.Intersects(want))

	assert.True(t, declared.Intersects(Compatibility{}), "empty filter always passes")
}

func TestQuarantineEntryTerminal(t *testing.T) {
	e := &QuarantineEntry{Status: QuarantinePending}
	assert.False(t, e.IsTerminal())
	e.Status = QuarantineApproved
	assert.True(t, e.IsTerminal())
}

func TestQuarantineEntryHasApprovalFrom(t *testing.T) {
	e := &QuarantineEntry{Approvals: []Approval{{ReviewerID: "alice"}}}
	assert.True(t, e.HasApprovalFrom("alice"))
	assert.False(t, e.HasApprovalFrom("bob"))
}

func TestFiltersEmpty(t *testing.T) {
	assert.True(t, Filters{}.Empty())
	assert.False(t, Filters{Category: "testing"}.Empty())
	assert.False(t, Filters{SafeOnly: true}.Empty())
}
