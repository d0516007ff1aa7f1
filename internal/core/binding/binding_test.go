package binding

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenesync/internal/core/codec"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/operation"
)

func registered(reg *models.Registry, bindings ...Binding) {
	for _, b := range bindings {
		reg.ID(b)
	}
}

func TestNewMultiBinding(t *testing.T) {
	a := NewNodeBinding(NewSingleBindingData(1), 5)
	b := NewBoneBinding(NewSingleBindingData(1), BoneData{UserID: "u", BoneType: 3})
	c := NewRigBinding(NewSingleBindingData(1), BoneData{UserID: "u"}, "hand")

	inner, err := NewMultiBinding(a, b)
	require.NoError(t, err)
	outer, err := NewMultiBinding(inner, c)
	require.NoError(t, err)

	singles := outer.Singles()
	require.Len(t, singles, 3, "multi bindings never nest")
	assert.Same(t, a, singles[0])
	assert.Same(t, c, singles[2])
	assert.Equal(t, models.EntityID(1), outer.BoundNodeID())

	_, err = NewMultiBinding(a, NewNodeBinding(NewSingleBindingData(2), 5))
	assert.ErrorIs(t, err, ErrNodeMismatch)
	_, err = NewMultiBinding()
	assert.ErrorIs(t, err, ErrEmptyMultiBinding)
	_, err = NewMultiBinding(a, nil)
	assert.ErrorIs(t, err, ErrNilBinding)
}

func TestMultiBindingPriority(t *testing.T) {
	low, high := NewSingleBindingData(1), NewSingleBindingData(1)
	low.Priority, high.Priority = -2, 4
	m, err := NewMultiBinding(NewNodeBinding(low, 0), NewNodeBinding(high, 0))
	require.NoError(t, err)
	assert.Equal(t, int32(4), m.Priority())
}

func TestBindingPayloadSizes(t *testing.T) {
	reg := models.NewRegistry()
	node := NewNodeBinding(NewSingleBindingData(1), 5)
	bone := NewBoneBinding(NewSingleBindingData(1), BoneData{UserID: "user-1", BoneType: 9, BindToController: true})
	rig := NewRigBinding(NewSingleBindingData(1), BoneData{UserID: "user-1"}, "left-hand")
	multi, err := NewMultiBinding(node, bone, rig)
	require.NoError(t, err)
	registered(reg, node, bone, rig, multi)

	for _, b := range []Binding{node, bone, rig, multi} {
		op := operation.NewLoadEntity(b, models.NewUserSet("a"))
		bt, err := op.ToBytable("a")
		require.NoError(t, err, b.Type().String())
		raw, err := operation.ToBytes(op, "a")
		require.NoError(t, err, b.Type().String())
		assert.Len(t, raw, bt.Size(), b.Type().String())

		r := codec.NewReader(raw)
		assert.Equal(t, uint32(operation.KindLoadEntity), r.Uint32())
		assert.Equal(t, uint64(b.ID()), r.Uint64())
		assert.Equal(t, uint64(1), r.Uint64())
		assert.Equal(t, uint32(b.Type()), r.Uint32())
	}
}

func TestNodeBindingLayout(t *testing.T) {
	reg := models.NewRegistry()
	data := NewSingleBindingData(3)
	data.Priority = 2
	data.OffsetPosition = models.Vector3{X: 0.5}
	b := NewNodeBinding(data, 8)
	registered(reg, b)

	raw, err := b.EntityBytable("a")
	require.NoError(t, err)
	out, err := raw.Bytes()
	require.NoError(t, err)

	r := codec.NewReader(out)
	assert.Equal(t, uint64(b.ID()), r.Uint64())
	assert.Equal(t, uint64(3), r.Uint64())
	assert.Equal(t, uint32(TypeNode), r.Uint32())
	assert.Equal(t, int32(2), r.Int32())
	assert.False(t, r.Bool(), "partial fit")
	assert.True(t, r.Bool(), "sync position")
	assert.True(t, r.Bool(), "sync rotation")
	assert.False(t, r.Bool(), "sync scale")
	assert.Equal(t, models.Vector3{X: 0.5}, models.ReadVector3(r))
	assert.Equal(t, models.IdentityRotation, models.ReadQuaternion(r))
	assert.Equal(t, models.Vector3{X: 1, Y: 1, Z: 1}, models.ReadVector3(r))
	assert.Equal(t, models.Vector3{}, models.ReadVector3(r))
	assert.Equal(t, uint64(8), r.Uint64())
	assert.Zero(t, r.Remaining())
	require.NoError(t, r.Err())
}

func TestMultiBindingDto(t *testing.T) {
	reg := models.NewRegistry()
	a := NewNodeBinding(NewSingleBindingData(1), 5)
	b := NewRigBinding(NewSingleBindingData(1), BoneData{UserID: "u"}, "hand")
	m, err := NewMultiBinding(a, b)
	require.NoError(t, err)
	registered(reg, a, b, m)

	raw, err := json.Marshal(m.EntityDto("u"))
	require.NoError(t, err)

	var got MultiDto
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "multi", got.Type)
	require.Len(t, got.Bindings, 2)
	assert.Equal(t, "node", got.Bindings[0].Type)
	assert.Equal(t, models.EntityID(5), got.Bindings[0].ParentNodeID)
	assert.Equal(t, "rig", got.Bindings[1].Type)
	assert.Equal(t, "hand", got.Bindings[1].RigName)
}
