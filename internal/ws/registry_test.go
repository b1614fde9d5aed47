package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	alice := &Client{id: "c1", userID: "alice"}

	epoch := r.Register("alice", alice)
	require.NotZero(t, epoch)

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, alice, got)

	_, ok = r.Lookup("bob")
	assert.False(t, ok)
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry()
	first := &Client{id: "c1", userID: "alice"}
	second := &Client{id: "c2", userID: "alice"}

	r.Register("alice", first)
	r.Register("alice", second)

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	alice := &Client{id: "c1", userID: "alice"}

	epoch := r.Register("alice", alice)

	assert.True(t, r.Unregister("alice", epoch))
	assert.False(t, r.Unregister("alice", epoch))

	_, ok := r.Lookup("alice")
	assert.False(t, ok)
}

func TestRegistryStaleUnregisterDoesNotEvictNewerConnection(t *testing.T) {
	r := NewRegistry()
	first := &Client{id: "c1", userID: "alice"}
	second := &Client{id: "c2", userID: "alice"}

	oldEpoch := r.Register("alice", first)
	newEpoch := r.Register("alice", second)

	// The disconnect of the replaced connection arrives late.
	assert.False(t, r.Unregister("alice", oldEpoch))

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, second, got)

	assert.True(t, r.Unregister("alice", newEpoch))
}

func TestRegistrySnapshotIsSorted(t *testing.T) {
	r := NewRegistry()
	for _, u := range []string{"carol", "alice", "bob"} {
		r.Register(u, &Client{userID: u})
	}

	assert.Equal(t, []string{"alice", "bob", "carol"}, r.Snapshot())
}

func TestRegistrySnapshotEmpty(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Snapshot())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i%10)
			epoch := r.Register(userID, &Client{userID: userID})
			r.Lookup(userID)
			r.Snapshot()
			r.Unregister(userID, epoch)
		}(i)
	}
	wg.Wait()

	// Every user ended with at most one entry throughout.
	assert.LessOrEqual(t, r.Len(), 10)
}
