package environment

import (
	"fmt"

	"github.com/zeusync/scenesync/internal/core/binding"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/core/operation"
)

// AddNode registers node under parent and loads it for the active users. A
// zero parent hangs the node off the root.
func (e *Environment) AddNode(node *models.Node, parent models.EntityID) (models.EntityID, error) {
	if parent == 0 {
		parent = e.root.ID()
	}
	if parent != e.root.ID() {
		if _, ok := e.Node(parent); !ok {
			return 0, fmt.Errorf("%w: parent %d", ErrNodeNotFound, parent)
		}
	}

	id := e.entities.ID(node)

	e.mu.Lock()
	if _, ok := e.nodes[id]; ok {
		e.mu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrNodeExists, id)
	}
	node.SetParent(parent)
	e.nodes[id] = node
	e.pending.Add(operation.NewLoadEntity(node, e.users.Active()))
	e.mu.Unlock()

	e.logger.Debug("Node added", log.Node(uint64(id)), log.String("name", node.Name()))
	return id, nil
}

// Node resolves a node of this environment.
func (e *Environment) Node(id models.EntityID) (*models.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	return n, ok
}

// Nodes returns the number of nodes below the root.
func (e *Environment) Nodes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.nodes)
}

// RemoveNode drops every binding on the node, then deletes it for the active
// users. The node keeps its id so operations already queued for it still
// resolve.
func (e *Environment) RemoveNode(id models.EntityID) error {
	if _, ok := e.Node(id); !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if e.bindings.IsBound(id) {
		e.Queue(e.bindings.RemoveAllBindings(id, false, nil)...)
	}

	e.mu.Lock()
	delete(e.nodes, id)
	e.pending.Add(operation.NewDeleteEntity(id, e.users.Active()))
	e.mu.Unlock()

	e.entities.Release(id)
	e.logger.Debug("Node removed", log.Node(uint64(id)))
	return nil
}

// SetProperty queues a property change on entity for users, or for every
// active user when users is nil.
func (e *Environment) SetProperty(entity models.EntityID, key models.PropertyKey, value any, users models.UserSet) {
	e.Queue(operation.NewSetEntityProperty(entity, key, value, e.targets(users)))
}

// SetTransform moves a node server side and sends the new transform to the
// active users.
func (e *Environment) SetTransform(id models.EntityID, position models.Vector3, rotation models.Quaternion, scale models.Vector3) error {
	node, ok := e.Node(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	node.SetTransform(position, rotation, scale)

	active := e.users.Active()
	e.Queue(
		operation.NewSetEntityProperty(id, models.PropertyPosition, position, active),
		operation.NewSetEntityProperty(id, models.PropertyRotation, rotation, active),
		operation.NewSetEntityProperty(id, models.PropertyScale, scale, active),
	)
	return nil
}

// AddBinding binds for users, or for everyone when users is nil.
func (e *Environment) AddBinding(b binding.Binding, users models.UserSet) {
	e.Queue(e.bindings.AddBinding(b, users)...)
}

// RemoveBinding unbinds for users, or for everyone when users is nil.
func (e *Environment) RemoveBinding(b binding.Binding, syncTransform bool, users models.UserSet) {
	e.Queue(e.bindings.RemoveBinding(b, syncTransform, users)...)
}

// RemoveAllBindings clears every binding on node for users, or for everyone
// when users is nil.
func (e *Environment) RemoveAllBindings(node models.EntityID, syncTransform bool, users models.UserSet) {
	e.Queue(e.bindings.RemoveAllBindings(node, syncTransform, users)...)
}

// SetBindingsActivation switches client side binding computation.
func (e *Environment) SetBindingsActivation(activated bool, users models.UserSet) {
	if op := e.bindings.SetBindingsActivation(activated, users); op != nil {
		e.Queue(op)
	}
}

func (e *Environment) targets(users models.UserSet) models.UserSet {
	if users == nil {
		return e.users.Active()
	}
	return users
}
