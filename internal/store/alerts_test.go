package store_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car2x-dashboard/internal/domain"
	"car2x-dashboard/internal/store"
)

func TestAlertRingBoundedNewestFirst(t *testing.T) {
	r := store.NewAlertRing(store.DefaultAlertCapacity)

	for i := 0; i < 15; i++ {
		r.Push(domain.EmergencyEvent{ID: fmt.Sprintf("e%02d", i), Type: "accident"})
	}

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 10, "ring must hold exactly the 10 most recent")
	assert.Equal(t, "e14", snapshot[0].ID, "newest first")
	assert.Equal(t, "e05", snapshot[9].ID, "oldest surviving entry last")
	assert.Equal(t, 10, r.Len())
}

func TestAlertRingReportsEviction(t *testing.T) {
	r := store.NewAlertRing(2)

	_, evicted := r.Push(domain.EmergencyEvent{ID: "e1"})
	assert.False(t, evicted)
	_, evicted = r.Push(domain.EmergencyEvent{ID: "e2"})
	assert.False(t, evicted)

	old, evicted := r.Push(domain.EmergencyEvent{ID: "e3"})
	require.True(t, evicted)
	assert.Equal(t, "e1", old.ID, "oldest is evicted first")
}

func TestAlertRingSnapshotIsCopy(t *testing.T) {
	r := store.NewAlertRing(3)
	r.Push(domain.EmergencyEvent{ID: "e1"})

	snapshot := r.Snapshot()
	snapshot[0].ID = "mutated"

	assert.Equal(t, "e1", r.Snapshot()[0].ID)
}
