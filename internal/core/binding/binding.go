package binding

import (
	"fmt"

	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/operation"
)

// Type tags the binding variant on the wire.
type Type uint32

const (
	TypeUnknown Type = iota
	TypeNode
	TypeBone
	TypeRig
	TypeMulti
)

func (t Type) String() string {
	switch t {
	case TypeNode:
		return "node"
	case TypeBone:
		return "bone"
	case TypeRig:
		return "rig"
	case TypeMulti:
		return "multi"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Binding attaches the transform of a bound node to a source. Bindings are
// entities: they reach clients through LoadEntity and leave through
// DeleteEntity. Bindings are immutable once handed to a Manager.
type Binding interface {
	operation.Loadable
	BoundNodeID() models.EntityID
	Type() Type
	// Singles returns the single bindings this binding is made of, in order.
	// A single binding returns itself.
	Singles() []Single
}

// Single is a binding with exactly one source.
type Single interface {
	Binding
	Data() SingleBindingData
}

// SingleBindingData is shared by every single binding variant.
type SingleBindingData struct {
	Node       models.EntityID
	Priority   int32
	PartialFit bool

	SyncPosition bool
	SyncRotation bool
	SyncScale    bool

	OffsetPosition models.Vector3
	OffsetRotation models.Quaternion
	OffsetScale    models.Vector3
	AnchorPosition models.Vector3
}

// NewSingleBindingData returns data for node with an identity offset, syncing
// position and rotation.
func NewSingleBindingData(node models.EntityID) SingleBindingData {
	return SingleBindingData{
		Node:           node,
		SyncPosition:   true,
		SyncRotation:   true,
		OffsetRotation: models.IdentityRotation,
		OffsetScale:    models.Vector3{X: 1, Y: 1, Z: 1},
	}
}

func (d SingleBindingData) BoundNodeID() models.EntityID { return d.Node }

func (d SingleBindingData) Data() SingleBindingData { return d }

// NodeBinding follows another scene node.
type NodeBinding struct {
	models.Handle
	SingleBindingData
	ParentNodeID models.EntityID
}

func NewNodeBinding(data SingleBindingData, parent models.EntityID) *NodeBinding {
	return &NodeBinding{SingleBindingData: data, ParentNodeID: parent}
}

func (*NodeBinding) Type() Type { return TypeNode }

func (b *NodeBinding) Singles() []Single { return []Single{b} }

// BoneData identifies a bone of a user's tracked body.
type BoneData struct {
	UserID           models.UserID
	BoneType         uint32
	BindToController bool
}

// BoneBinding follows a bone of a user.
type BoneBinding struct {
	models.Handle
	SingleBindingData
	BoneData
}

func NewBoneBinding(data SingleBindingData, bone BoneData) *BoneBinding {
	return &BoneBinding{SingleBindingData: data, BoneData: bone}
}

func (*BoneBinding) Type() Type { return TypeBone }

func (b *BoneBinding) Singles() []Single { return []Single{b} }

// RigBinding follows a bone of a user and drives the named rig of the bound
// node.
type RigBinding struct {
	models.Handle
	SingleBindingData
	BoneData
	RigName string
}

func NewRigBinding(data SingleBindingData, bone BoneData, rig string) *RigBinding {
	return &RigBinding{SingleBindingData: data, BoneData: bone, RigName: rig}
}

func (*RigBinding) Type() Type { return TypeRig }

func (b *RigBinding) Singles() []Single { return []Single{b} }

// MultiBinding applies several single bindings to one node. It never nests:
// building one from other multi bindings flattens them.
type MultiBinding struct {
	models.Handle
	node     models.EntityID
	bindings []Single
}

// NewMultiBinding flattens parts in order. Every part must bind the same node.
func NewMultiBinding(parts ...Binding) (*MultiBinding, error) {
	m := &MultiBinding{}
	for _, p := range parts {
		if p == nil {
			return nil, ErrNilBinding
		}
		if len(m.bindings) == 0 {
			m.node = p.BoundNodeID()
		} else if p.BoundNodeID() != m.node {
			return nil, fmt.Errorf("%w: %d and %d", ErrNodeMismatch, m.node, p.BoundNodeID())
		}
		m.bindings = append(m.bindings, p.Singles()...)
	}
	if len(m.bindings) == 0 {
		return nil, ErrEmptyMultiBinding
	}
	return m, nil
}

func (*MultiBinding) Type() Type { return TypeMulti }

func (m *MultiBinding) BoundNodeID() models.EntityID { return m.node }

func (m *MultiBinding) Singles() []Single {
	out := make([]Single, len(m.bindings))
	copy(out, m.bindings)
	return out
}

// Priority is the highest priority among the parts.
func (m *MultiBinding) Priority() int32 {
	var p int32
	for i, b := range m.bindings {
		if d := b.Data(); i == 0 || d.Priority > p {
			p = d.Priority
		}
	}
	return p
}

// contains reports whether every single of part is in b.
func contains(b, part Binding) bool {
	if b == nil || part == nil {
		return false
	}
	if b.ID() == part.ID() {
		return true
	}
	have := make(map[models.EntityID]struct{})
	for _, s := range b.Singles() {
		have[s.ID()] = struct{}{}
	}
	for _, s := range part.Singles() {
		if _, ok := have[s.ID()]; !ok {
			return false
		}
	}
	return true
}

// without returns the singles of b that are not in part.
func without(b, part Binding) []Single {
	drop := make(map[models.EntityID]struct{})
	for _, s := range part.Singles() {
		drop[s.ID()] = struct{}{}
	}
	var rest []Single
	for _, s := range b.Singles() {
		if _, ok := drop[s.ID()]; !ok {
			rest = append(rest, s)
		}
	}
	return rest
}
