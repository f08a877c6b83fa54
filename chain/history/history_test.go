package history

import (
	"testing"

	"github.com/syssiproject/oxen-core-sub000/chain/snapshot"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
	"github.com/syssiproject/oxen-core-sub000/testing/assert"
	"github.com/syssiproject/oxen-core-sub000/testing/require"
)

func snapshotAt(height primitives.Height) *snapshot.StateSnapshot {
	s := snapshot.Empty()
	s.Height = height
	s.BlockHash[0] = byte(height)
	return s
}

func TestInsertAndLookup(t *testing.T) {
	cfg := params.Get()
	h := New(cfg)
	for i := primitives.Height(1); i <= 5; i++ {
		h.Insert(snapshotAt(i))
	}
	s, ok := h.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, primitives.Height(3), s.Height)

	_, ok = h.Lookup(999)
	assert.False(t, ok)
}

func TestInsertCullsShortTermWindow(t *testing.T) {
	cfg := params.Get()
	h := New(cfg)
	window := h.shortTermWindow()

	h.Insert(snapshotAt(1))
	h.Insert(snapshotAt(primitives.Height(window + 100)))

	_, ok := h.Lookup(1)
	assert.False(t, ok, "height 1 should have been culled once far outside the window")
}

func TestDetachExactShortTermMatch(t *testing.T) {
	cfg := params.Get()
	h := New(cfg)
	for i := primitives.Height(1); i <= 100; i++ {
		h.Insert(snapshotAt(i))
	}

	s, rescanFrom, ok := h.Detach(80)
	require.True(t, ok)
	require.NotNil(t, s)
	assert.Equal(t, primitives.Height(80), rescanFrom)

	_, stillThere := h.Lookup(90)
	assert.False(t, stillThere, "heights above the detach point must be dropped")
}

func TestDetachFallsBackToArchive(t *testing.T) {
	cfg := params.Get()
	h := New(cfg)
	h.Insert(snapshotAt(0))
	h.Insert(snapshotAt(primitives.Height(cfg.StoreLongTermStateInterval)))

	target := primitives.Height(cfg.StoreLongTermStateInterval + 5)
	_, rescanFrom, ok := h.Detach(target)
	require.True(t, ok)
	assert.Equal(t, primitives.Height(cfg.StoreLongTermStateInterval), rescanFrom)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := params.Get()
	h := New(cfg)
	h.Insert(snapshotAt(1))
	h.Insert(snapshotAt(2))

	blob, err := h.Save()
	require.NoError(t, err)

	loaded, err := Load(cfg, blob)
	require.NoError(t, err)

	s, ok := loaded.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, primitives.Height(2), s.Height)

	original, _ := h.Lookup(2)
	assert.DeepEqual(t, original, s, "round-tripped snapshot must match the original field for field")
}
