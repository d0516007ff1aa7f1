package transaction

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/metrics"
	"github.com/zeusync/scenesync/internal/core/operation"
)

// Simplify collapses redundant operations in place. See Simplify.
func (t *Transaction) Simplify() {
	t.ops = Simplify(t.ops)
}

// Simplify returns the minimal operation list with the same effect as ops, for
// every recipient. Operations are visited once, in emission order; a later
// operation cancels earlier ones by removing its recipients from them, so the
// same entity can simplify differently for different users. Running Simplify
// on its own output changes nothing.
//
// Simplify panics with ErrUnknownOperation on a kind it has no rule for.
func Simplify(ops []operation.Operation) []operation.Operation {
	s := &simplifier{
		result: make([]operation.Operation, 0, len(ops)),
		held:   make(map[models.EntityID]models.UserSet),
	}
	for _, op := range ops {
		if operation.IsEmpty(op) {
			continue
		}
		metrics.SimplifyInput.WithLabelValues(op.Kind().String()).Inc()
		s.accept(op)
	}
	for _, op := range s.result {
		metrics.SimplifyOutput.WithLabelValues(op.Kind().String()).Inc()
	}
	return s.result
}

type simplifier struct {
	result []operation.Operation
	// held lists, per entity, the users whose pending delete a later load
	// cancelled: they had the entity before this list started.
	held map[models.EntityID]models.UserSet
}

func (s *simplifier) accept(op operation.Operation) {
	users := op.Users()

	switch op.Kind() {
	case operation.KindSetEntityDictionaryAddProperty,
		operation.KindSetEntityDictionaryRemoveProperty,
		operation.KindSetEntityListAddProperty,
		operation.KindSetEntityListRemoveProperty,
		operation.KindMultiSetEntityProperty,
		operation.KindStartInterpolationProperty,
		operation.KindStopInterpolationProperty:
		// discrete edits, never superseded
		s.result = append(s.result, op)

	case operation.KindSetEntityListProperty:
		o := op.(*operation.SetEntityListProperty)
		s.cancel(users, func(prior operation.Operation) bool {
			p, ok := prior.(*operation.SetEntityListProperty)
			return ok && p.EntityID == o.EntityID && p.Property == o.Property && p.Index == o.Index
		})
		s.result = append(s.result, op)

	case operation.KindSetEntityDictionaryProperty:
		o := op.(*operation.SetEntityDictionaryProperty)
		s.cancel(users, func(prior operation.Operation) bool {
			p, ok := prior.(*operation.SetEntityDictionaryProperty)
			return ok && p.EntityID == o.EntityID && p.Property == o.Property && reflect.DeepEqual(p.Key, o.Key)
		})
		s.result = append(s.result, op)

	case operation.KindSetEntityProperty:
		o := op.(*operation.SetEntityProperty)
		s.cancel(users, func(prior operation.Operation) bool {
			p, ok := prior.(*operation.SetEntityProperty)
			return ok && p.EntityID == o.EntityID && p.Property == o.Property
		})
		s.result = append(s.result, op)

	case operation.KindDeleteEntity:
		s.acceptDelete(op.(*operation.DeleteEntity))

	case operation.KindLoadEntity:
		s.acceptLoad(op.(*operation.LoadEntity))

	default:
		panic(fmt.Errorf("%w: %s", ErrUnknownOperation, op.Kind()))
	}
}

// acceptDelete drops pending property sets and loads of the entity. Users
// whose pending load was dropped never learn the entity existed, so they get
// no delete and no other pending edit of it either, unless they already held
// the entity when the list started.
func (s *simplifier) acceptDelete(op *operation.DeleteEntity) {
	id := op.EntityID
	users := op.Users()

	s.cancel(users, func(prior operation.Operation) bool {
		p, ok := prior.(*operation.SetEntityProperty)
		return ok && p.EntityID == id
	})

	dropped := s.cancel(users, func(prior operation.Operation) bool {
		p, ok := prior.(*operation.LoadEntity)
		return ok && p.EntityID() == id
	})
	if !dropped.IsEmpty() {
		s.cancel(dropped, func(prior operation.Operation) bool {
			return targetsOnly(prior, id)
		})
	}

	unloaded := dropped
	if held, ok := s.held[id]; ok {
		unloaded = dropped.Difference(held)
	}
	if !unloaded.IsEmpty() {
		s.narrowMulti(unloaded, id)
	}

	rest := operation.RemoveUsers(op, unloaded)
	if operation.IsEmpty(rest) {
		return
	}

	// an earlier delete of the same entity is superseded by this one
	s.cancel(rest.Users(), func(prior operation.Operation) bool {
		p, ok := prior.(*operation.DeleteEntity)
		return ok && p.EntityID == id
	})
	s.result = append(s.result, rest)
}

// acceptLoad drops pending deletes of the entity, and keeps only the first
// load of the entity for each user.
func (s *simplifier) acceptLoad(op *operation.LoadEntity) {
	id := op.EntityID()
	users := op.Users()

	deleted := s.cancel(users, func(prior operation.Operation) bool {
		p, ok := prior.(*operation.DeleteEntity)
		return ok && p.EntityID == id
	})
	if !deleted.IsEmpty() {
		s.held[id] = s.held[id].Union(deleted)
	}

	loaded := models.UserSet{}
	for _, prior := range s.result {
		if p, ok := prior.(*operation.LoadEntity); ok && p.EntityID() == id {
			loaded = loaded.Union(p.Users().Intersect(users))
		}
	}

	rest := operation.RemoveUsers(op, loaded)
	if operation.IsEmpty(rest) {
		return
	}
	s.result = append(s.result, rest)
}

// narrowMulti takes entity id out of the pending multi-entity sets addressed
// to users. Each affected set is split in place: the other recipients keep
// the full list, users get the list without id.
func (s *simplifier) narrowMulti(users models.UserSet, id models.EntityID) {
	out := make([]operation.Operation, 0, len(s.result))
	for _, prior := range s.result {
		p, ok := prior.(*operation.MultiSetEntityProperty)
		if !ok || !slices.Contains(p.EntityIDs, id) {
			out = append(out, prior)
			continue
		}
		overlap := p.Users().Intersect(users)
		if overlap.IsEmpty() {
			out = append(out, prior)
			continue
		}
		if rest := operation.RemoveUsers(p, overlap); !operation.IsEmpty(rest) {
			out = append(out, rest)
		}
		ids := slices.DeleteFunc(slices.Clone(p.EntityIDs), func(e models.EntityID) bool { return e == id })
		if len(ids) > 0 {
			out = append(out, operation.NewMultiSetEntityProperty(ids, p.Property, p.Value, overlap))
		}
	}
	s.result = out
}

// cancel removes users from every accepted operation matching match, drops
// the ones left without recipients, and returns the users actually removed.
func (s *simplifier) cancel(users models.UserSet, match func(operation.Operation) bool) models.UserSet {
	removed := models.UserSet{}
	kept := s.result[:0]
	for _, prior := range s.result {
		if !match(prior) {
			kept = append(kept, prior)
			continue
		}
		overlap := prior.Users().Intersect(users)
		if overlap.IsEmpty() {
			kept = append(kept, prior)
			continue
		}
		removed = removed.Union(overlap)
		if rest := operation.RemoveUsers(prior, overlap); !operation.IsEmpty(rest) {
			kept = append(kept, rest)
		}
	}
	clear(s.result[len(kept):])
	s.result = kept
	return removed
}

// targetsOnly reports whether op edits entity id and nothing else.
func targetsOnly(op operation.Operation, id models.EntityID) bool {
	switch p := op.(type) {
	case *operation.SetEntityProperty:
		return p.EntityID == id
	case *operation.SetEntityListProperty:
		return p.EntityID == id
	case *operation.SetEntityListAddProperty:
		return p.EntityID == id
	case *operation.SetEntityListRemoveProperty:
		return p.EntityID == id
	case *operation.SetEntityDictionaryProperty:
		return p.EntityID == id
	case *operation.SetEntityDictionaryAddProperty:
		return p.EntityID == id
	case *operation.SetEntityDictionaryRemoveProperty:
		return p.EntityID == id
	case *operation.StartInterpolationProperty:
		return p.EntityID == id
	case *operation.StopInterpolationProperty:
		return p.EntityID == id
	}
	return false
}
