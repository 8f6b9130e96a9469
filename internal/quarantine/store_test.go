package quarantine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smith-horn/skillsmith/internal/skill"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func basicReviewer(id string) Reviewer {
	return Reviewer{ID: id, Capabilities: map[Capability]bool{CapReviewBasic: true}}
}

func elevatedReviewer(id string) Reviewer {
	return Reviewer{ID: id, Capabilities: map[Capability]bool{CapReviewBasic: true, CapReviewElevated: true}}
}

func TestCreateIsIdempotentWhilePending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e1, err := s.Create(ctx, "acme/skill", "suspicious pattern", skill.SeverityHigh)
	require.NoError(t, err)
	e2, err := s.Create(ctx, "acme/skill", "different reason", skill.SeverityHigh)
	require.NoError(t, err)
	assert.Equal(t, e1.ID, e2.ID)
}

func TestSingleApprovalRequiredForNonCritical(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.Create(ctx, "acme/skill", "reason", skill.SeverityHigh)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.RequiredApprovals)

	updated, err := s.AddApproval(ctx, entry.ID, basicReviewer("alice"), "looks fine")
	require.NoError(t, err)
	assert.Equal(t, skill.QuarantineApproved, updated.Status)
}

func TestCriticalRequiresTwoDistinctApprovalsAndElevatedCapability(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.Create(ctx, "acme/skill", "critical finding", skill.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.RequiredApprovals)

	_, err = s.AddApproval(ctx, entry.ID, basicReviewer("alice"), "")
	require.Error(t, err, "basic capability should not satisfy a critical-severity approval")

	updated, err := s.AddApproval(ctx, entry.ID, elevatedReviewer("alice"), "")
	require.NoError(t, err)
	assert.Equal(t, skill.QuarantinePending, updated.Status)

	updated, err = s.AddApproval(ctx, entry.ID, elevatedReviewer("bob"), "")
	require.NoError(t, err)
	assert.Equal(t, skill.QuarantineApproved, updated.Status)
}

func TestDuplicateApprovalRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.Create(ctx, "acme/skill", "reason", skill.SeverityCritical)
	require.NoError(t, err)

	_, err = s.AddApproval(ctx, entry.ID, elevatedReviewer("alice"), "")
	require.NoError(t, err)

	_, err = s.AddApproval(ctx, entry.ID, elevatedReviewer("alice"), "")
	require.ErrorIs(t, err, skill.ErrAlreadyApproved)
}

func TestApprovalOnTerminalEntryFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.Create(ctx, "acme/skill", "reason", skill.SeverityHigh)
	require.NoError(t, err)

	_, err = s.Reject(ctx, entry.ID, basicReviewer("alice"), "not safe")
	require.NoError(t, err)

	_, err = s.AddApproval(ctx, entry.ID, basicReviewer("bob"), "")
	require.ErrorIs(t, err, skill.ErrTerminalState)
}

func TestListFiltersByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e1, err := s.Create(ctx, "acme/skill-a", "reason", skill.SeverityHigh)
	require.NoError(t, err)
	_, err = s.Create(ctx, "acme/skill-b", "reason", skill.SeverityHigh)
	require.NoError(t, err)

	_, err = s.AddApproval(ctx, e1.ID, basicReviewer("alice"), "")
	require.NoError(t, err)

	pending, err := s.List(ctx, Filter{Status: skill.QuarantinePending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "acme/skill-b", pending[0].SkillID)

	approved, err := s.List(ctx, Filter{Status: skill.QuarantineApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "acme/skill-a", approved[0].SkillID)
}

func TestIsQuarantinedReflectsPendingOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.Create(ctx, "acme/skill", "reason", skill.SeverityHigh)
	require.NoError(t, err)

	quarantined, err := s.IsQuarantined(ctx, "acme/skill")
	require.NoError(t, err)
	assert.True(t, quarantined)

	_, err = s.AddApproval(ctx, entry.ID, basicReviewer("alice"), "")
	require.NoError(t, err)

	quarantined, err = s.IsQuarantined(ctx, "acme/skill")
	require.NoError(t, err)
	assert.False(t, quarantined, "approved entries are no longer non-terminal/pending")
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/quarantine.db"

	s1, err := Open(path)
	require.NoError(t, err)
	entry, err := s1.Create(context.Background(), "acme/skill", "reason", skill.SeverityHigh)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	reopened, err := s2.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.SkillID, reopened.SkillID)
}
