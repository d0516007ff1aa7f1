package binding

import (
	"github.com/zeusync/scenesync/internal/core/codec"
	"github.com/zeusync/scenesync/internal/core/models"
)

// Dto is the structured load payload of a single binding.
type Dto struct {
	ID          models.EntityID `json:"id"`
	BoundNodeID models.EntityID `json:"boundNodeId"`
	Type        string          `json:"type"`
	Priority    int32           `json:"priority"`
	PartialFit  bool            `json:"partialFit"`

	SyncPosition bool `json:"syncPosition"`
	SyncRotation bool `json:"syncRotation"`
	SyncScale    bool `json:"syncScale"`

	OffsetPosition models.Vector3    `json:"offsetPosition"`
	OffsetRotation models.Quaternion `json:"offsetRotation"`
	OffsetScale    models.Vector3    `json:"offsetScale"`
	AnchorPosition models.Vector3    `json:"anchorPosition"`

	ParentNodeID     models.EntityID `json:"parentNodeId,omitempty"`
	UserID           models.UserID   `json:"userId,omitempty"`
	BoneType         uint32          `json:"boneType,omitempty"`
	BindToController bool            `json:"bindToController,omitempty"`
	RigName          string          `json:"rigName,omitempty"`
}

// MultiDto is the structured load payload of a multi binding.
type MultiDto struct {
	ID          models.EntityID `json:"id"`
	BoundNodeID models.EntityID `json:"boundNodeId"`
	Type        string          `json:"type"`
	Priority    int32           `json:"priority"`
	Bindings    []Dto           `json:"bindings"`
}

// prefix writes [id u64][bound node u64][type u32].
func prefix(id, node models.EntityID, t Type) codec.Bytable {
	return codec.Join(
		codec.Uint64(uint64(id)),
		codec.Uint64(uint64(node)),
		codec.Uint32(uint32(t)),
	)
}

// bytable writes the data shared by single bindings.
func (d SingleBindingData) bytable() codec.Bytable {
	return codec.Join(
		codec.Int32(d.Priority),
		codec.Bool(d.PartialFit),
		codec.Bool(d.SyncPosition),
		codec.Bool(d.SyncRotation),
		codec.Bool(d.SyncScale),
		codec.Float32s(d.OffsetPosition.X, d.OffsetPosition.Y, d.OffsetPosition.Z),
		codec.Float32s(d.OffsetRotation.X, d.OffsetRotation.Y, d.OffsetRotation.Z, d.OffsetRotation.W),
		codec.Float32s(d.OffsetScale.X, d.OffsetScale.Y, d.OffsetScale.Z),
		codec.Float32s(d.AnchorPosition.X, d.AnchorPosition.Y, d.AnchorPosition.Z),
	)
}

func (d SingleBindingData) dto(id models.EntityID, t Type) Dto {
	return Dto{
		ID:             id,
		BoundNodeID:    d.Node,
		Type:           t.String(),
		Priority:       d.Priority,
		PartialFit:     d.PartialFit,
		SyncPosition:   d.SyncPosition,
		SyncRotation:   d.SyncRotation,
		SyncScale:      d.SyncScale,
		OffsetPosition: d.OffsetPosition,
		OffsetRotation: d.OffsetRotation,
		OffsetScale:    d.OffsetScale,
		AnchorPosition: d.AnchorPosition,
	}
}

func (b BoneData) bytable() codec.Bytable {
	return codec.Join(
		codec.String(string(b.UserID)),
		codec.Uint32(b.BoneType),
		codec.Bool(b.BindToController),
	)
}

// EntityBytable writes [prefix][data][parent node u64].
func (b *NodeBinding) EntityBytable(models.UserID) (codec.Bytable, error) {
	return codec.Join(
		prefix(b.ID(), b.Node, TypeNode),
		b.SingleBindingData.bytable(),
		codec.Uint64(uint64(b.ParentNodeID)),
	), nil
}

func (b *NodeBinding) EntityDto(models.UserID) any {
	return b.dto()
}

func (b *NodeBinding) dto() Dto {
	d := b.SingleBindingData.dto(b.ID(), TypeNode)
	d.ParentNodeID = b.ParentNodeID
	return d
}

// EntityBytable writes [prefix][data][user][bone type u32][bind to controller].
func (b *BoneBinding) EntityBytable(models.UserID) (codec.Bytable, error) {
	return codec.Join(
		prefix(b.ID(), b.Node, TypeBone),
		b.SingleBindingData.bytable(),
		b.BoneData.bytable(),
	), nil
}

func (b *BoneBinding) EntityDto(models.UserID) any {
	return b.dto()
}

func (b *BoneBinding) dto() Dto {
	d := b.SingleBindingData.dto(b.ID(), TypeBone)
	d.UserID = b.UserID
	d.BoneType = b.BoneType
	d.BindToController = b.BindToController
	return d
}

// EntityBytable writes the bone binding layout followed by the rig name.
func (b *RigBinding) EntityBytable(models.UserID) (codec.Bytable, error) {
	return codec.Join(
		prefix(b.ID(), b.Node, TypeRig),
		b.SingleBindingData.bytable(),
		b.BoneData.bytable(),
		codec.String(b.RigName),
	), nil
}

func (b *RigBinding) EntityDto(models.UserID) any {
	return b.dto()
}

func (b *RigBinding) dto() Dto {
	d := b.SingleBindingData.dto(b.ID(), TypeRig)
	d.UserID = b.UserID
	d.BoneType = b.BoneType
	d.BindToController = b.BindToController
	d.RigName = b.RigName
	return d
}

// EntityBytable writes [prefix][priority i32][count u32] followed by the full
// payload of every part.
func (m *MultiBinding) EntityBytable(user models.UserID) (codec.Bytable, error) {
	parts := []codec.Bytable{
		prefix(m.ID(), m.node, TypeMulti),
		codec.Int32(m.Priority()),
		codec.Uint32(uint32(len(m.bindings))),
	}
	for _, b := range m.bindings {
		p, err := b.EntityBytable(user)
		if err != nil {
			return codec.Empty, err
		}
		parts = append(parts, p)
	}
	return codec.Join(parts...), nil
}

func (m *MultiBinding) EntityDto(models.UserID) any {
	d := MultiDto{
		ID:          m.ID(),
		BoundNodeID: m.node,
		Type:        TypeMulti.String(),
		Priority:    m.Priority(),
		Bindings:    make([]Dto, 0, len(m.bindings)),
	}
	for _, b := range m.bindings {
		if sd, ok := b.(interface{ dto() Dto }); ok {
			d.Bindings = append(d.Bindings, sd.dto())
		}
	}
	return d
}
