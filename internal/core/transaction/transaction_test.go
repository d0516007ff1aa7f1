package transaction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenesync/internal/core/codec"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/operation"
)

func users(ids ...models.UserID) models.UserSet { return models.NewUserSet(ids...) }

func registeredNode(t *testing.T, reg *models.Registry, name string) *models.Node {
	t.Helper()
	n := models.NewNode(name)
	require.NotZero(t, reg.ID(n))
	return n
}

// effect renders what each user receives, to compare lists by outcome.
func effect(t *testing.T, ops []operation.Operation, who ...models.UserID) map[models.UserID][]string {
	t.Helper()
	out := map[models.UserID][]string{}
	for _, u := range who {
		tx := New(true, ops...)
		d := tx.ToDto(u)
		for _, op := range d.Operations {
			raw, err := json.Marshal(op)
			require.NoError(t, err)
			out[u] = append(out[u], string(raw))
		}
	}
	return out
}

func TestAddDropsEmptyOperations(t *testing.T) {
	tx := New(false)
	kept := tx.Add(nil, operation.NewDeleteEntity(1, nil), operation.NewDeleteEntity(1, users("a")))
	assert.Equal(t, 1, kept)
	assert.Equal(t, 1, tx.Len())
	assert.False(t, tx.Reliable())
	assert.True(t, tx.Users().Equal(users("a")))
}

func TestSimplifyPerUserCancellation(t *testing.T) {
	ops := []operation.Operation{
		operation.NewSetEntityProperty(1, models.PropertyName, "v1", users("a", "b")),
		operation.NewSetEntityProperty(1, models.PropertyName, "v2", users("a")),
	}
	out := Simplify(ops)
	require.Len(t, out, 2)

	first := out[0].(*operation.SetEntityProperty)
	second := out[1].(*operation.SetEntityProperty)
	assert.Equal(t, "v1", first.Value)
	assert.True(t, first.Users().Equal(users("b")))
	assert.Equal(t, "v2", second.Value)
	assert.True(t, second.Users().Equal(users("a")))
}

func TestSimplifyKeepsDistinctProperties(t *testing.T) {
	ops := []operation.Operation{
		operation.NewSetEntityProperty(1, models.PropertyName, "n", users("a")),
		operation.NewSetEntityProperty(1, models.PropertyActive, true, users("a")),
		operation.NewSetEntityProperty(2, models.PropertyName, "n", users("a")),
	}
	assert.Len(t, Simplify(ops), 3)
}

func TestDeleteSupersedesLoad(t *testing.T) {
	reg := models.NewRegistry()
	n := registeredNode(t, reg, "door")

	ops := []operation.Operation{
		operation.NewLoadEntity(n, users("a")),
		operation.NewSetEntityProperty(n.ID(), models.PropertyPosition, models.Vector3{X: 1}, users("a")),
		operation.NewSetEntityListAddProperty(n.ID(), 1001, 0, "x", users("a")),
		operation.NewDeleteEntity(n.ID(), users("a")),
	}
	assert.Empty(t, Simplify(ops), "the user never sees the entity")
}

func TestDeleteOnlyForUsersThatHadTheEntity(t *testing.T) {
	reg := models.NewRegistry()
	n := registeredNode(t, reg, "door")

	ops := []operation.Operation{
		operation.NewLoadEntity(n, users("a")),
		operation.NewSetEntityProperty(n.ID(), models.PropertyName, "x", users("a", "b")),
		operation.NewDeleteEntity(n.ID(), users("a", "b")),
	}
	out := Simplify(ops)
	require.Len(t, out, 1)
	del, ok := out[0].(*operation.DeleteEntity)
	require.True(t, ok)
	assert.True(t, del.Users().Equal(users("b")))
}

func TestDeleteThenLoadIsLoad(t *testing.T) {
	reg := models.NewRegistry()
	n := registeredNode(t, reg, "door")

	ops := []operation.Operation{
		operation.NewDeleteEntity(n.ID(), users("a")),
		operation.NewLoadEntity(n, users("a")),
	}
	out := Simplify(ops)
	require.Len(t, out, 1)
	assert.Equal(t, operation.KindLoadEntity, out[0].Kind())
}

func TestReloadThenDeleteStillDeletes(t *testing.T) {
	reg := models.NewRegistry()
	n := registeredNode(t, reg, "door")

	ops := []operation.Operation{
		operation.NewDeleteEntity(n.ID(), users("a")),
		operation.NewLoadEntity(n, users("a")),
		operation.NewSetEntityProperty(n.ID(), models.PropertyName, "x", users("a")),
		operation.NewDeleteEntity(n.ID(), users("a")),
	}
	out := Simplify(ops)
	require.Len(t, out, 1, "the user held the entity before the first delete")
	del, ok := out[0].(*operation.DeleteEntity)
	require.True(t, ok)
	assert.True(t, del.Users().Equal(users("a")))

	assert.Len(t, Simplify(out), 1)
}

func TestDeleteNarrowsMultiSetForUnloadedUsers(t *testing.T) {
	reg := models.NewRegistry()
	n := registeredNode(t, reg, "door")
	m := registeredNode(t, reg, "window")

	ops := []operation.Operation{
		operation.NewLoadEntity(n, users("a")),
		operation.NewMultiSetEntityProperty([]models.EntityID{n.ID(), m.ID()}, models.PropertyActive, true, users("a", "b")),
		operation.NewMultiSetEntityProperty([]models.EntityID{n.ID()}, models.PropertyName, "x", users("a")),
		operation.NewDeleteEntity(n.ID(), users("a", "b")),
	}
	out := Simplify(ops)
	require.Len(t, out, 3)

	forB := out[0].(*operation.MultiSetEntityProperty)
	assert.True(t, forB.Users().Equal(users("b")))
	assert.Equal(t, []models.EntityID{n.ID(), m.ID()}, forB.EntityIDs)

	forA := out[1].(*operation.MultiSetEntityProperty)
	assert.True(t, forA.Users().Equal(users("a")))
	assert.Equal(t, []models.EntityID{m.ID()}, forA.EntityIDs)

	del := out[2].(*operation.DeleteEntity)
	assert.True(t, del.Users().Equal(users("b")))

	assert.Len(t, Simplify(out), 3)
}

func TestRepeatedLoadKeepsFirstPosition(t *testing.T) {
	reg := models.NewRegistry()
	n := registeredNode(t, reg, "door")
	m := registeredNode(t, reg, "window")

	ops := []operation.Operation{
		operation.NewLoadEntity(n, users("a")),
		operation.NewLoadEntity(m, users("a")),
		operation.NewLoadEntity(n, users("a", "b")),
	}
	out := Simplify(ops)
	require.Len(t, out, 3)
	assert.Equal(t, n.ID(), out[0].(*operation.LoadEntity).EntityID())
	assert.Equal(t, m.ID(), out[1].(*operation.LoadEntity).EntityID())
	assert.True(t, out[2].Users().Equal(users("b")))
}

func TestRepeatedDeleteKeepsLast(t *testing.T) {
	ops := []operation.Operation{
		operation.NewDeleteEntity(4, users("a", "b")),
		operation.NewDeleteEntity(4, users("a")),
	}
	out := Simplify(ops)
	require.Len(t, out, 2)
	assert.True(t, out[0].Users().Equal(users("b")))
	assert.True(t, out[1].Users().Equal(users("a")))
}

func TestListReplaceByIndex(t *testing.T) {
	ops := []operation.Operation{
		operation.NewSetEntityListProperty(1, 1001, 0, "a", users("a")),
		operation.NewSetEntityListProperty(1, 1001, 1, "b", users("a")),
		operation.NewSetEntityListProperty(1, 1001, 0, "c", users("a")),
	}
	out := Simplify(ops)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].(*operation.SetEntityListProperty).Index)
	assert.Equal(t, "c", out[1].(*operation.SetEntityListProperty).Value)
}

func TestDictionaryReplaceByKey(t *testing.T) {
	ops := []operation.Operation{
		operation.NewSetEntityDictionaryProperty(1, 1002, "k", 1, users("a")),
		operation.NewSetEntityDictionaryProperty(1, 1002, "other", 2, users("a")),
		operation.NewSetEntityDictionaryProperty(1, 1002, "k", 3, users("a")),
	}
	out := Simplify(ops)
	require.Len(t, out, 2)
	assert.Equal(t, "other", out[0].(*operation.SetEntityDictionaryProperty).Key)
	assert.Equal(t, 3, out[1].(*operation.SetEntityDictionaryProperty).Value)
}

func TestDiscreteEditsAreKept(t *testing.T) {
	ops := []operation.Operation{
		operation.NewSetEntityListAddProperty(1, 1001, 0, "x", users("a")),
		operation.NewSetEntityListAddProperty(1, 1001, 0, "x", users("a")),
		operation.NewSetEntityListRemoveProperty(1, 1001, 0, "x", users("a")),
		operation.NewMultiSetEntityProperty([]models.EntityID{1, 2}, models.PropertyActive, true, users("a")),
		operation.NewStartInterpolationProperty(1, models.PropertyPosition, models.Vector3{}, users("a")),
		operation.NewStopInterpolationProperty(1, models.PropertyPosition, models.Vector3{X: 1}, users("a")),
	}
	assert.Len(t, Simplify(ops), len(ops))
}

func TestSimplifyIsIdempotent(t *testing.T) {
	reg := models.NewRegistry()
	n := registeredNode(t, reg, "door")
	m := registeredNode(t, reg, "window")

	ops := []operation.Operation{
		operation.NewLoadEntity(n, users("a")),
		operation.NewDeleteEntity(m.ID(), users("b")),
		operation.NewSetEntityProperty(n.ID(), models.PropertyName, "v1", users("a", "b")),
		operation.NewLoadEntity(m, users("b", "c")),
		operation.NewSetEntityListProperty(n.ID(), 1001, 2, "x", users("a")),
		operation.NewSetEntityProperty(n.ID(), models.PropertyName, "v2", users("a")),
		operation.NewDeleteEntity(n.ID(), users("b")),
		operation.NewSetEntityListProperty(n.ID(), 1001, 2, "y", users("a", "c")),
		operation.NewDeleteEntity(m.ID(), users("c")),
	}

	once := Simplify(ops)
	twice := Simplify(once)
	require.Len(t, twice, len(once))
	for i := range once {
		assert.Equal(t, once[i].Kind(), twice[i].Kind())
		assert.True(t, once[i].Users().Equal(twice[i].Users()))
	}

	all := []models.UserID{"a", "b", "c"}
	assert.Equal(t, effect(t, once, all...), effect(t, twice, all...))
}

func TestSimplifyNeverAddsUsers(t *testing.T) {
	reg := models.NewRegistry()
	n := registeredNode(t, reg, "door")

	ops := []operation.Operation{
		operation.NewLoadEntity(n, users("a", "b")),
		operation.NewSetEntityProperty(n.ID(), models.PropertyName, "x", users("a")),
		operation.NewDeleteEntity(n.ID(), users("b")),
		operation.NewSetEntityProperty(n.ID(), models.PropertyName, "y", users("a", "b")),
	}
	in := New(true, ops...).Users()
	for _, op := range Simplify(ops) {
		assert.False(t, op.Users().IsEmpty())
		assert.True(t, op.Users().Difference(in).IsEmpty())
	}
}

func TestSimplifyPanicsOnUnknownKind(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrUnknownOperation)
	}()
	Simplify([]operation.Operation{unknownOp{}})
}

type unknownOp struct{ operation.Operation }

func (unknownOp) Kind() operation.Kind { return 99 }

func (unknownOp) Users() models.UserSet { return models.NewUserSet("a") }

func TestForUserNarrowsRecipients(t *testing.T) {
	tx := New(true,
		operation.NewSetEntityProperty(1, models.PropertyName, "x", users("a", "b")),
		operation.NewDeleteEntity(2, users("b")),
	)
	view := tx.ForUser("a")
	require.Equal(t, 1, view.Len())
	assert.True(t, view.Operations()[0].Users().Equal(users("a")))
	assert.Equal(t, tx.ID(), view.ID())
}

func TestToBytesFramesOperationsForUser(t *testing.T) {
	tx := New(true,
		operation.NewDeleteEntity(7, users("a")),
		operation.NewDeleteEntity(8, users("b")),
	)
	raw, err := tx.ToBytes("a")
	require.NoError(t, err)

	r := codec.NewReader(raw)
	assert.Equal(t, uint32(operation.KindTransaction), r.Uint32())
	assert.Equal(t, uint32(operation.KindDeleteEntity), r.Uint32())
	assert.Equal(t, uint64(7), r.Uint64())
	assert.Zero(t, r.Remaining())
	require.NoError(t, r.Err())
}

func TestToBytesReportsOperationErrors(t *testing.T) {
	tx := New(true, operation.NewLoadEntity(models.NewNode("loose"), users("a")))
	_, err := tx.ToBytes("a")
	assert.ErrorIs(t, err, operation.ErrUnregisteredEntity)
}

func TestToDto(t *testing.T) {
	tx := New(false, operation.NewDeleteEntity(7, users("a")))
	d := tx.ToDto("b")
	assert.Empty(t, d.Operations)
	assert.False(t, d.Reliable)

	raw, err := json.Marshal(tx.ToDto("a"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"DeleteEntity"`)
}
