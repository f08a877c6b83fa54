package cache

import (
	"testing"

	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
	"github.com/syssiproject/oxen-core-sub000/testing/assert"
	"github.com/syssiproject/oxen-core-sub000/testing/require"
)

func TestX25519Map_SetGetDelete(t *testing.T) {
	m := NewX25519Map()
	x := primitives.X25519PubKey{1, 2, 3}
	primary := primitives.PubKey{9, 9, 9}

	_, ok := m.Get(x)
	assert.False(t, ok)

	m.Set(x, primary)
	got, ok := m.Get(x)
	require.True(t, ok)
	assert.Equal(t, primary, got)

	m.Delete(x)
	_, ok = m.Get(x)
	assert.False(t, ok)
}

func TestX25519Map_Clone_IsIndependent(t *testing.T) {
	m := NewX25519Map()
	x := primitives.X25519PubKey{1}
	m.Set(x, primitives.PubKey{1})

	clone := m.Clone()
	clone.Set(x, primitives.PubKey{2})

	got, _ := m.Get(x)
	assert.Equal(t, primitives.PubKey{1}, got)
}

func TestOldQuorumRing_EvictsOldest(t *testing.T) {
	r := NewOldQuorumRing(2)
	r.Push(QuorumRecord{Height: 1})
	r.Push(QuorumRecord{Height: 2})
	r.Push(QuorumRecord{Height: 3})

	_, ok := r.Find(1, 0)
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = r.Find(3, 0)
	assert.True(t, ok)
}

func TestOldQuorumRing_Contains(t *testing.T) {
	r := NewOldQuorumRing(3)
	pub := primitives.PubKey{7}
	r.Push(QuorumRecord{Height: 5, Round: 0, Validators: []primitives.PubKey{pub}})

	assert.True(t, r.Contains(5, 0, pub))
	assert.False(t, r.Contains(5, 0, primitives.PubKey{8}))
	assert.False(t, r.Contains(6, 0, pub))
}

func TestProofCache_RecordAndRead(t *testing.T) {
	c, err := NewProofCache(10)
	require.NoError(t, err)

	pub := primitives.PubKey{1}
	_, ok := c.LastAccepted(pub)
	assert.False(t, ok)

	c.RecordAccepted(pub, 1000)
	ts, ok := c.LastAccepted(pub)
	require.True(t, ok)
	assert.Equal(t, int64(1000), ts)
}
