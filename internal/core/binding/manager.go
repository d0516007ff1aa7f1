package binding

import (
	"maps"
	"slices"
	"sync"

	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/core/observability/metrics"
	"github.com/zeusync/scenesync/internal/core/operation"
)

// Directory lists the users currently able to receive operations.
type Directory interface {
	Active() models.UserSet
}

// Manager owns the bindings of one environment and produces the operations
// that move clients from one binding state to the next.
//
// State has two layers. The global layer maps a node to the binding every
// user sees. The per-user layer overrides it for single users; a nil entry
// there means the user explicitly has no binding on the node.
//
// A method either applies fully or leaves the state untouched. A request
// that is invalid or changes nothing is logged and returns no operations.
type Manager struct {
	mu sync.Mutex

	logger      log.Log
	environment models.EntityID
	entities    *models.Registry
	users       Directory

	global  map[models.EntityID]Binding
	perUser map[models.EntityID]map[models.UserID]Binding

	activated     bool
	userActivated map[models.UserID]bool

	dispatched models.UserSet
}

// NewManager returns a manager for the environment entity environment.
// Bound nodes are resolved through entities.
func NewManager(environment models.EntityID, entities *models.Registry, users Directory, logger log.Log) *Manager {
	return &Manager{
		logger:        logger.With(log.String("component", "binding")),
		environment:   environment,
		entities:      entities,
		users:         users,
		global:        make(map[models.EntityID]Binding),
		perUser:       make(map[models.EntityID]map[models.UserID]Binding),
		activated:     true,
		userActivated: make(map[models.UserID]bool),
		dispatched:    models.UserSet{},
	}
}

// AddBinding adds b to its node for users, or for everyone when users is nil.
// Users without a binding get b; users with one get a multi binding holding
// their binding followed by b.
func (m *Manager) AddBinding(b Binding, users models.UserSet) []operation.Operation {
	if b == nil {
		m.logger.Warn("Add binding: binding is nil")
		metrics.BindingRequests.WithLabelValues("add", "invalid").Inc()
		return nil
	}
	m.entities.ID(b)
	for _, s := range b.Singles() {
		m.entities.ID(s)
	}
	return m.apply("add", b.BoundNodeID(), m.upgrade(b), false, users, b)
}

// RemoveBinding removes b from its node for users, or for everyone when users
// is nil. A multi binding containing b is downgraded to what remains. When
// the node ends up unbound and syncTransform is set, clients are pinned to the
// node's server side transform.
func (m *Manager) RemoveBinding(b Binding, syncTransform bool, users models.UserSet) []operation.Operation {
	if b == nil {
		m.logger.Warn("Remove binding: binding is nil")
		metrics.BindingRequests.WithLabelValues("remove", "invalid").Inc()
		return nil
	}
	return m.apply("remove", b.BoundNodeID(), m.downgrade(b), syncTransform, users, b)
}

// RemoveOrDowngradeBinding is RemoveBinding.
func (m *Manager) RemoveOrDowngradeBinding(b Binding, syncTransform bool, users models.UserSet) []operation.Operation {
	return m.RemoveBinding(b, syncTransform, users)
}

// RemoveAllBindings removes whatever is bound to node for users, or for
// everyone when users is nil.
func (m *Manager) RemoveAllBindings(node models.EntityID, syncTransform bool, users models.UserSet) []operation.Operation {
	return m.apply("remove_all", node, clearAll, syncTransform, users, nil)
}

func (m *Manager) apply(method string, node models.EntityID, next transition, syncTransform bool, users models.UserSet, request Binding) []operation.Operation {
	logger := m.logger.With(log.String("method", method), log.Node(uint64(node)))

	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.entities.LookupNode(node)
	if !ok {
		logger.Warn("Bound node does not resolve")
		metrics.BindingRequests.WithLabelValues(method, "invalid").Inc()
		m.release(orNone(request))
		return nil
	}

	all := users == nil
	targets := users.Clone()
	if all {
		targets = m.users.Active()
	}
	p := newPlanner(next)

	var ops []operation.Operation
	changed := false
	for _, g := range m.partition(node, targets.Intersect(m.users.Active())) {
		c, err := p.plan(g.binding)
		if err != nil {
			logger.Warn("Failed to plan binding change", log.Error(err))
			metrics.BindingRequests.WithLabelValues(method, "invalid").Inc()
			return nil
		}
		if c.skip {
			continue
		}
		changed = true
		ops = append(ops, m.emit(c, n, syncTransform, g.users)...)
	}

	var planErr error
	step := func(from Binding) (Binding, bool) {
		c, err := p.plan(from)
		if err != nil {
			planErr = err
			return from, false
		}
		return c.to, !c.skip
	}

	global := m.global[node]
	overrides := maps.Clone(m.perUser[node])
	if overrides == nil {
		overrides = make(map[models.UserID]Binding)
	}
	if all {
		if to, ok := step(global); ok {
			changed = true
			global = to
		}
	}
	for u, current := range m.perUser[node] {
		if !all && !targets.Contains(u) {
			continue
		}
		if to, ok := step(current); ok {
			changed = true
			overrides[u] = to
		}
	}
	if !all {
		for u := range targets {
			if _, ok := m.perUser[node][u]; ok {
				continue
			}
			if to, ok := step(global); ok {
				changed = true
				overrides[u] = to
			}
		}
	}
	if planErr != nil {
		logger.Warn("Failed to plan binding change", log.Error(planErr))
		metrics.BindingRequests.WithLabelValues(method, "invalid").Inc()
		return nil
	}

	if !changed {
		logger.Warn("Binding request changes nothing", log.Int("users", targets.Len()))
		metrics.BindingRequests.WithLabelValues(method, "noop").Inc()
		m.release(append(p.touched(), orNone(request)...))
		return nil
	}

	m.commit(node, global, overrides)
	m.release(append(p.touched(), orNone(request)...))
	metrics.BindingRequests.WithLabelValues(method, "applied").Inc()
	metrics.BindingNodes.WithLabelValues().Set(float64(m.boundNodes()))
	logger.Debug("Binding request applied", log.Int("operations", len(ops)))
	return ops
}

// emit returns the operations moving users through c.
func (m *Manager) emit(c change, node *models.Node, syncTransform bool, users models.UserSet) []operation.Operation {
	var ops []operation.Operation
	if c.from != nil {
		ops = append(ops, operation.NewDeleteEntity(c.from.ID(), users))
	}
	if c.to != nil {
		return append(ops, operation.NewLoadEntity(c.to, users))
	}
	if syncTransform {
		position, rotation, scale := node.Transform()
		id := node.ID()
		ops = append(ops,
			operation.NewSetEntityProperty(id, models.PropertyPosition, position, users),
			operation.NewSetEntityProperty(id, models.PropertyRotation, rotation, users),
			operation.NewSetEntityProperty(id, models.PropertyScale, scale, users),
		)
	}
	return ops
}

// partition groups users by their current binding on node.
func (m *Manager) partition(node models.EntityID, users models.UserSet) []group {
	var groups []group
	index := make(map[uint64]int)
	for _, u := range users.Sorted() {
		b := m.current(node, u)
		key := fingerprint(b)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{binding: b, users: models.UserSet{}})
		}
		groups[i].users[u] = struct{}{}
	}
	return groups
}

func (m *Manager) current(node models.EntityID, user models.UserID) Binding {
	if b, ok := m.perUser[node][user]; ok {
		return b
	}
	return m.global[node]
}

// commit stores the new layers of node, dropping overrides equal to the
// global binding.
func (m *Manager) commit(node models.EntityID, global Binding, overrides map[models.UserID]Binding) {
	if global == nil {
		delete(m.global, node)
	} else {
		m.global[node] = global
	}

	key := fingerprint(global)
	for u, b := range overrides {
		if fingerprint(b) == key {
			delete(overrides, u)
		}
	}
	if len(overrides) == 0 {
		delete(m.perUser, node)
		return
	}
	m.perUser[node] = overrides
}

// release unregisters the candidates, and their parts, that no layer
// references any more.
func (m *Manager) release(candidates []Binding) {
	if len(candidates) == 0 {
		return
	}
	referenced := make(map[models.EntityID]struct{})
	mark := func(b Binding) {
		if b == nil {
			return
		}
		referenced[b.ID()] = struct{}{}
		for _, s := range b.Singles() {
			referenced[s.ID()] = struct{}{}
		}
	}
	for _, b := range m.global {
		mark(b)
	}
	for _, layer := range m.perUser {
		for _, b := range layer {
			mark(b)
		}
	}

	for _, b := range candidates {
		for _, e := range append([]Binding{b}, singlesAsBindings(b)...) {
			if _, ok := referenced[e.ID()]; !ok && e.ID() != 0 {
				m.entities.Release(e.ID())
			}
		}
	}
}

func (m *Manager) boundNodes() int {
	nodes := make(map[models.EntityID]struct{}, len(m.global))
	for node := range m.global {
		nodes[node] = struct{}{}
	}
	for node, layer := range m.perUser {
		for _, b := range layer {
			if b != nil {
				nodes[node] = struct{}{}
				break
			}
		}
	}
	return len(nodes)
}

// SetBindingsActivation turns client side binding computation on or off for
// users, or for everyone when users is nil. The returned operation targets the
// affected active users.
func (m *Manager) SetBindingsActivation(activated bool, users models.UserSet) operation.Operation {
	m.mu.Lock()
	defer m.mu.Unlock()

	targets := users.Clone()
	if users == nil {
		m.activated = activated
		clear(m.userActivated)
		targets = m.users.Active()
	} else {
		for u := range users {
			m.userActivated[u] = activated
		}
		targets = targets.Intersect(m.users.Active())
	}
	if targets.IsEmpty() {
		return nil
	}
	return operation.NewSetEntityProperty(m.environment, models.PropertyBindingsActivated, activated, targets)
}

// BindingsActivated reports whether user computes bindings.
func (m *Manager) BindingsActivated(user models.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activatedFor(user)
}

func (m *Manager) activatedFor(user models.UserID) bool {
	if a, ok := m.userActivated[user]; ok {
		return a
	}
	return m.activated
}

// Bindings returns the binding user currently sees on node, or nil.
func (m *Manager) Bindings(node models.EntityID, user models.UserID) Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current(node, user)
}

// IsBound reports whether any user sees a binding on node.
func (m *Manager) IsBound(node models.EntityID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.global[node]; ok {
		return true
	}
	for _, b := range m.perUser[node] {
		if b != nil {
			return true
		}
	}
	return false
}

// DispatchBindings returns the operations bringing a newly active user to the
// current binding state: a load for every binding the user sees, ordered by
// node id. It returns nothing for a user already dispatched to.
func (m *Manager) DispatchBindings(user models.UserID) []operation.Operation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dispatched.Contains(user) {
		m.logger.Debug("Bindings already dispatched", log.User(string(user)))
		return nil
	}
	m.dispatched[user] = struct{}{}

	nodes := slices.Collect(maps.Keys(m.global))
	for node := range m.perUser {
		if _, ok := m.global[node]; !ok {
			nodes = append(nodes, node)
		}
	}
	slices.Sort(nodes)

	only := models.NewUserSet(user)
	var ops []operation.Operation
	for _, node := range nodes {
		if b := m.current(node, user); b != nil {
			ops = append(ops, operation.NewLoadEntity(b, only))
		}
	}
	if !m.activatedFor(user) {
		ops = append(ops, operation.NewSetEntityProperty(m.environment, models.PropertyBindingsActivated, false, only))
	}

	m.logger.Debug("Bindings dispatched", log.User(string(user)), log.Int("operations", len(ops)))
	return ops
}

// ReDispatchBindings dispatches the full binding state to user again.
func (m *Manager) ReDispatchBindings(user models.UserID) []operation.Operation {
	m.ForgetDispatch(user)
	return m.DispatchBindings(user)
}

// ForgetDispatch marks user as not having received the binding state.
func (m *Manager) ForgetDispatch(user models.UserID) {
	m.mu.Lock()
	delete(m.dispatched, user)
	m.mu.Unlock()
}

// Dispatched reports whether user received the binding state.
func (m *Manager) Dispatched(user models.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dispatched.Contains(user)
}

// CleanBindings drops everything kept for a user that left.
func (m *Manager) CleanBindings(user models.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.dispatched, user)
	delete(m.userActivated, user)

	var dropped []Binding
	for node, layer := range m.perUser {
		b, ok := layer[user]
		if !ok {
			continue
		}
		dropped = append(dropped, orNone(b)...)
		delete(layer, user)
		if len(layer) == 0 {
			delete(m.perUser, node)
		}
	}
	m.release(dropped)
	metrics.BindingNodes.WithLabelValues().Set(float64(m.boundNodes()))
}

func orNone(b Binding) []Binding {
	if b == nil {
		return nil
	}
	return []Binding{b}
}

func singlesAsBindings(b Binding) []Binding {
	singles := b.Singles()
	out := make([]Binding, len(singles))
	for i, s := range singles {
		out[i] = s
	}
	return out
}
