package models

import (
	"sync"

	"github.com/zeusync/scenesync/internal/core/codec"
)

// Node is a scene-graph node with a transform. Its transform is the last value
// computed server side and is what binding removal pins clients to.
type Node struct {
	Handle

	mu       sync.RWMutex
	name     string
	parent   EntityID
	position Vector3
	rotation Quaternion
	scale    Vector3
}

// NodeDto is the structured load payload of a node.
type NodeDto struct {
	ID       EntityID   `json:"id"`
	Name     string     `json:"name"`
	Parent   EntityID   `json:"parent,omitempty"`
	Position Vector3    `json:"position"`
	Rotation Quaternion `json:"rotation"`
	Scale    Vector3    `json:"scale"`
}

func NewNode(name string) *Node {
	return &Node{
		name:     name,
		rotation: IdentityRotation,
		scale:    Vector3{X: 1, Y: 1, Z: 1},
	}
}

func (n *Node) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

func (n *Node) Parent() EntityID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

func (n *Node) SetParent(id EntityID) {
	n.mu.Lock()
	n.parent = id
	n.mu.Unlock()
}

// Transform returns position, rotation and scale.
func (n *Node) Transform() (Vector3, Quaternion, Vector3) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.position, n.rotation, n.scale
}

func (n *Node) SetTransform(position Vector3, rotation Quaternion, scale Vector3) {
	n.mu.Lock()
	n.position, n.rotation, n.scale = position, rotation, scale
	n.mu.Unlock()
}

func (n *Node) SetPosition(p Vector3) {
	n.mu.Lock()
	n.position = p
	n.mu.Unlock()
}

func (n *Node) SetRotation(q Quaternion) {
	n.mu.Lock()
	n.rotation = q
	n.mu.Unlock()
}

func (n *Node) SetScale(s Vector3) {
	n.mu.Lock()
	n.scale = s
	n.mu.Unlock()
}

func (n *Node) dto() NodeDto {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return NodeDto{
		ID:       n.ID(),
		Name:     n.name,
		Parent:   n.parent,
		Position: n.position,
		Rotation: n.rotation,
		Scale:    n.scale,
	}
}

// EntityDto returns the load payload. Nodes look the same to every user.
func (n *Node) EntityDto(UserID) any {
	return n.dto()
}

// EntityBytable writes [id][name][parent][position][rotation][scale].
func (n *Node) EntityBytable(UserID) (codec.Bytable, error) {
	d := n.dto()
	return codec.Join(
		codec.Uint64(uint64(d.ID)),
		codec.String(d.Name),
		codec.Uint64(uint64(d.Parent)),
		codec.Float32s(d.Position.X, d.Position.Y, d.Position.Z),
		codec.Float32s(d.Rotation.X, d.Rotation.Y, d.Rotation.Z, d.Rotation.W),
		codec.Float32s(d.Scale.X, d.Scale.Y, d.Scale.Z),
	), nil
}
