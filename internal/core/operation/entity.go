package operation

import (
	"fmt"

	"github.com/zeusync/scenesync/internal/core/codec"
	"github.com/zeusync/scenesync/internal/core/models"
)

// Loadable is an entity that can be sent to clients whole.
type Loadable interface {
	models.Entity
	EntityBytable(user models.UserID) (codec.Bytable, error)
	EntityDto(user models.UserID) any
}

// LoadEntity sends an entity to its recipients.
type LoadEntity struct {
	base
	Entity Loadable
}

func NewLoadEntity(e Loadable, users models.UserSet) *LoadEntity {
	return &LoadEntity{base: newBase(users), Entity: e}
}

func (*LoadEntity) Kind() Kind { return KindLoadEntity }

// EntityID is the id of the loaded entity, read at call time.
func (o *LoadEntity) EntityID() models.EntityID {
	if o.Entity == nil {
		return 0
	}
	return o.Entity.ID()
}

func (o *LoadEntity) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *LoadEntity) ToBytable(user models.UserID) (codec.Bytable, error) {
	if o.Entity == nil {
		return codec.Empty, ErrNilEntity
	}
	if o.Entity.ID() == 0 {
		return codec.Empty, ErrUnregisteredEntity
	}
	payload, err := o.Entity.EntityBytable(user)
	if err != nil {
		return codec.Empty, fmt.Errorf("load entity %d: %w", o.Entity.ID(), err)
	}
	return header(KindLoadEntity).Append(payload), nil
}

func (o *LoadEntity) ToDto(user models.UserID) Dto {
	d := &LoadEntityDto{dtoHeader: dtoHeader{Type: KindLoadEntity.String()}, EntityID: o.EntityID()}
	if o.Entity != nil {
		d.Entity = o.Entity.EntityDto(user)
	}
	return d
}

// DeleteEntity removes an entity from its recipients.
type DeleteEntity struct {
	base
	EntityID models.EntityID
}

func NewDeleteEntity(id models.EntityID, users models.UserSet) *DeleteEntity {
	return &DeleteEntity{base: newBase(users), EntityID: id}
}

func (*DeleteEntity) Kind() Kind { return KindDeleteEntity }

func (o *DeleteEntity) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *DeleteEntity) ToBytable(models.UserID) (codec.Bytable, error) {
	return codec.Join(header(KindDeleteEntity), codec.Uint64(uint64(o.EntityID))), nil
}

func (o *DeleteEntity) ToDto(models.UserID) Dto {
	return &DeleteEntityDto{dtoHeader: dtoHeader{Type: KindDeleteEntity.String()}, EntityID: o.EntityID}
}
