package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(identity string) *Client {
	return NewClient(nil, identity, "127.0.0.1:12345", nil, NewRegistry(), NewConfig())
}

func Test_Register_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	ann := newTestClient("ann")

	displaced := registry.Register("ann", ann)
	req.Nil(displaced)

	got, ok := registry.Lookup("ann")
	req.True(ok)
	req.Same(ann, got)
	req.Equal(1, registry.Len())

	_, ok = registry.Lookup("bo")
	req.False(ok)
}

func Test_Register_Replaces_Previous_Entry(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := newTestClient("ann")
	second := newTestClient("ann")

	req.Nil(registry.Register("ann", first))

	displaced := registry.Register("ann", second)
	req.Same(first, displaced)

	got, ok := registry.Lookup("ann")
	req.True(ok)
	req.Same(second, got)
	req.Equal(1, registry.Len())
}

func Test_Unregister_Absent_Identity_Is_NoOp(t *testing.T) {
	registry := NewRegistry()

	registry.Unregister("ghost", nil)
	registry.Unregister("ghost", newTestClient("ghost"))

	require.Equal(t, 0, registry.Len())
}

func Test_Unregister_With_Stale_Owner_Keeps_Replacement(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := newTestClient("ann")
	second := newTestClient("ann")

	registry.Register("ann", first)
	registry.Register("ann", second)

	// The displaced connection tearing itself down must not evict its
	// replacement.
	registry.Unregister("ann", first)

	got, ok := registry.Lookup("ann")
	req.True(ok)
	req.Same(second, got)

	registry.Unregister("ann", second)
	_, ok = registry.Lookup("ann")
	req.False(ok)
}

func Test_Snapshot_Is_Immune_To_Later_Mutation(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	for i := 0; i < 5; i++ {
		identity := fmt.Sprintf("client_%d", i)
		registry.Register(identity, newTestClient(identity))
	}

	snapshot := registry.Snapshot()
	req.Len(snapshot, 5)

	registry.Register("late", newTestClient("late"))
	registry.Unregister("client_0", nil)

	req.Len(snapshot, 5)
	req.Equal(5, registry.Len())
}

func Test_Concurrent_Registry_Mutation(t *testing.T) {
	registry := NewRegistry()
	done := make(chan struct{}, 20)

	for i := 0; i < 10; i++ {
		go func(id int) {
			identity := fmt.Sprintf("client_%d", id)
			registry.Register(identity, newTestClient(identity))
			done <- struct{}{}
		}(i)
		go func() {
			registry.Snapshot()
			done <- struct{}{}
		}()
	}

	for i := 0; i < 20; i++ {
		<-done
	}
	require.Equal(t, 10, registry.Len())
}
