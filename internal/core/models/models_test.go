package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenesync/internal/core/codec"
)

func TestUserSetAlgebra(t *testing.T) {
	ab := NewUserSet("a", "b")
	bc := NewUserSet("b", "c")

	assert.True(t, ab.Union(bc).Equal(NewUserSet("a", "b", "c")))
	assert.True(t, ab.Difference(bc).Equal(NewUserSet("a")))
	assert.True(t, ab.Intersect(bc).Equal(NewUserSet("b")))
	assert.Equal(t, []UserID{"a", "b"}, ab.Sorted())

	// receivers are untouched
	assert.Equal(t, 2, ab.Len())
	assert.Equal(t, 2, bc.Len())

	var empty UserSet
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.Contains("a"))
	assert.True(t, empty.Union(ab).Equal(ab))
	assert.NotNil(t, empty.Clone())
}

func TestRegistryLazyRegistration(t *testing.T) {
	reg := NewRegistry()
	n := NewNode("root")
	assert.Zero(t, n.ID())

	id := reg.ID(n)
	require.NotZero(t, id)
	assert.Equal(t, id, n.ID())
	assert.Equal(t, id, reg.ID(n), "second call must not re-register")

	got, ok := reg.LookupNode(id)
	require.True(t, ok)
	assert.Same(t, n, got)

	assert.True(t, reg.Remove(id))
	assert.Zero(t, n.ID())
	assert.False(t, reg.Contains(id))
	assert.False(t, reg.Remove(id))

	again := reg.ID(n)
	assert.NotEqual(t, id, again, "ids are never reused")
	assert.Zero(t, reg.ID(nil))
}

func TestRegistryRelease(t *testing.T) {
	reg := NewRegistry()
	n := NewNode("retired")
	id := reg.ID(n)

	assert.True(t, reg.Release(id))
	assert.False(t, reg.Contains(id))
	assert.Equal(t, id, n.ID(), "released entities keep their id")
	assert.False(t, reg.Release(id))

	assert.Equal(t, id, reg.ID(n), "re-registration reuses the carried id")
	assert.True(t, reg.Contains(id))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryConcurrentRegistration(t *testing.T) {
	reg := NewRegistry()
	n := NewNode("shared")

	var wg sync.WaitGroup
	ids := make([]EntityID, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = reg.ID(n)
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestNodePayload(t *testing.T) {
	reg := NewRegistry()
	n := NewNode("arm")
	n.SetTransform(Vector3{X: 1, Y: 2, Z: 3}, IdentityRotation, Vector3{X: 2, Y: 2, Z: 2})
	id := reg.ID(n)

	b, err := n.EntityBytable("u")
	require.NoError(t, err)
	raw, err := b.Bytes()
	require.NoError(t, err)

	r := codec.NewReader(raw)
	assert.Equal(t, uint64(id), r.Uint64())
	assert.Equal(t, "arm", r.String())
	assert.Zero(t, r.Uint64())
	assert.Equal(t, Vector3{X: 1, Y: 2, Z: 3}, ReadVector3(r))
	assert.Equal(t, IdentityRotation, ReadQuaternion(r))
	assert.Equal(t, Vector3{X: 2, Y: 2, Z: 2}, ReadVector3(r))
	assert.Zero(t, r.Remaining())

	dto := n.EntityDto("u").(NodeDto)
	assert.Equal(t, id, dto.ID)
}
