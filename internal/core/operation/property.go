package operation

import (
	"fmt"
	"slices"

	"github.com/zeusync/scenesync/internal/core/codec"
	"github.com/zeusync/scenesync/internal/core/models"
)

// property is the addressed payload shared by the property operations.
type property struct {
	EntityID models.EntityID
	Property models.PropertyKey
	Value    any
}

func (p property) prefix(k Kind) codec.Bytable {
	return codec.Join(header(k), codec.Uint64(uint64(p.EntityID)), codec.Uint32(uint32(p.Property)))
}

func (p property) bytable(k Kind, user models.UserID, extra ...codec.Bytable) (codec.Bytable, error) {
	v, err := valueBytable(p.Value, user)
	if err != nil {
		return codec.Empty, fmt.Errorf("%s %d/%d: %w", k, p.EntityID, p.Property, err)
	}
	parts := append([]codec.Bytable{p.prefix(k)}, extra...)
	return codec.Join(append(parts, v)...), nil
}

func (p property) dto(k Kind, user models.UserID) SetEntityPropertyDto {
	return SetEntityPropertyDto{
		dtoHeader: dtoHeader{Type: k.String()},
		EntityID:  p.EntityID,
		Property:  p.Property,
		Value:     Resolve(p.Value, user),
	}
}

// SetEntityProperty replaces the whole value of a property.
type SetEntityProperty struct {
	base
	property
}

func NewSetEntityProperty(id models.EntityID, key models.PropertyKey, value any, users models.UserSet) *SetEntityProperty {
	return &SetEntityProperty{base: newBase(users), property: property{EntityID: id, Property: key, Value: value}}
}

func (*SetEntityProperty) Kind() Kind { return KindSetEntityProperty }

func (o *SetEntityProperty) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *SetEntityProperty) ToBytable(user models.UserID) (codec.Bytable, error) {
	return o.bytable(KindSetEntityProperty, user)
}

func (o *SetEntityProperty) ToDto(user models.UserID) Dto {
	d := o.dto(KindSetEntityProperty, user)
	return &d
}

// SetEntityListProperty replaces the item at Index of a list property.
type SetEntityListProperty struct {
	base
	property
	Index int
}

func NewSetEntityListProperty(id models.EntityID, key models.PropertyKey, index int, value any, users models.UserSet) *SetEntityListProperty {
	return &SetEntityListProperty{base: newBase(users), property: property{EntityID: id, Property: key, Value: value}, Index: index}
}

func (*SetEntityListProperty) Kind() Kind { return KindSetEntityListProperty }

func (o *SetEntityListProperty) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *SetEntityListProperty) ToBytable(user models.UserID) (codec.Bytable, error) {
	return o.bytable(KindSetEntityListProperty, user, codec.Int32(int32(o.Index)))
}

func (o *SetEntityListProperty) ToDto(user models.UserID) Dto {
	return &SetEntityListPropertyDto{SetEntityPropertyDto: o.dto(KindSetEntityListProperty, user), Index: o.Index}
}

// SetEntityListAddProperty inserts Value at Index of a list property.
type SetEntityListAddProperty struct {
	base
	property
	Index int
}

func NewSetEntityListAddProperty(id models.EntityID, key models.PropertyKey, index int, value any, users models.UserSet) *SetEntityListAddProperty {
	return &SetEntityListAddProperty{base: newBase(users), property: property{EntityID: id, Property: key, Value: value}, Index: index}
}

func (*SetEntityListAddProperty) Kind() Kind { return KindSetEntityListAddProperty }

func (o *SetEntityListAddProperty) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *SetEntityListAddProperty) ToBytable(user models.UserID) (codec.Bytable, error) {
	return o.bytable(KindSetEntityListAddProperty, user, codec.Int32(int32(o.Index)))
}

func (o *SetEntityListAddProperty) ToDto(user models.UserID) Dto {
	return &SetEntityListAddPropertyDto{SetEntityPropertyDto: o.dto(KindSetEntityListAddProperty, user), Index: o.Index}
}

// SetEntityListRemoveProperty removes the item at Index of a list property.
// Value is the removed item, letting clients check they remove what the
// server expects.
type SetEntityListRemoveProperty struct {
	base
	property
	Index int
}

func NewSetEntityListRemoveProperty(id models.EntityID, key models.PropertyKey, index int, value any, users models.UserSet) *SetEntityListRemoveProperty {
	return &SetEntityListRemoveProperty{base: newBase(users), property: property{EntityID: id, Property: key, Value: value}, Index: index}
}

func (*SetEntityListRemoveProperty) Kind() Kind { return KindSetEntityListRemoveProperty }

func (o *SetEntityListRemoveProperty) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *SetEntityListRemoveProperty) ToBytable(user models.UserID) (codec.Bytable, error) {
	return o.bytable(KindSetEntityListRemoveProperty, user, codec.Int32(int32(o.Index)))
}

func (o *SetEntityListRemoveProperty) ToDto(user models.UserID) Dto {
	return &SetEntityListRemovePropertyDto{SetEntityPropertyDto: o.dto(KindSetEntityListRemoveProperty, user), Index: o.Index}
}

// SetEntityDictionaryProperty replaces the value under Key of a dictionary
// property.
type SetEntityDictionaryProperty struct {
	base
	property
	Key any
}

func NewSetEntityDictionaryProperty(id models.EntityID, prop models.PropertyKey, key, value any, users models.UserSet) *SetEntityDictionaryProperty {
	return &SetEntityDictionaryProperty{base: newBase(users), property: property{EntityID: id, Property: prop, Value: value}, Key: key}
}

func (*SetEntityDictionaryProperty) Kind() Kind { return KindSetEntityDictionaryProperty }

func (o *SetEntityDictionaryProperty) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *SetEntityDictionaryProperty) ToBytable(user models.UserID) (codec.Bytable, error) {
	key, err := codec.Value(o.Key)
	if err != nil {
		return codec.Empty, fmt.Errorf("dictionary key: %w", err)
	}
	return o.bytable(KindSetEntityDictionaryProperty, user, key)
}

func (o *SetEntityDictionaryProperty) ToDto(user models.UserID) Dto {
	return &SetEntityDictionaryPropertyDto{SetEntityPropertyDto: o.dto(KindSetEntityDictionaryProperty, user), Key: o.Key}
}

// SetEntityDictionaryAddProperty adds Key with Value to a dictionary property.
type SetEntityDictionaryAddProperty struct {
	base
	property
	Key any
}

func NewSetEntityDictionaryAddProperty(id models.EntityID, prop models.PropertyKey, key, value any, users models.UserSet) *SetEntityDictionaryAddProperty {
	return &SetEntityDictionaryAddProperty{base: newBase(users), property: property{EntityID: id, Property: prop, Value: value}, Key: key}
}

func (*SetEntityDictionaryAddProperty) Kind() Kind { return KindSetEntityDictionaryAddProperty }

func (o *SetEntityDictionaryAddProperty) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *SetEntityDictionaryAddProperty) ToBytable(user models.UserID) (codec.Bytable, error) {
	key, err := codec.Value(o.Key)
	if err != nil {
		return codec.Empty, fmt.Errorf("dictionary key: %w", err)
	}
	return o.bytable(KindSetEntityDictionaryAddProperty, user, key)
}

func (o *SetEntityDictionaryAddProperty) ToDto(user models.UserID) Dto {
	return &SetEntityDictionaryAddPropertyDto{SetEntityPropertyDto: o.dto(KindSetEntityDictionaryAddProperty, user), Key: o.Key}
}

// SetEntityDictionaryRemoveProperty removes Key from a dictionary property.
type SetEntityDictionaryRemoveProperty struct {
	base
	EntityID models.EntityID
	Property models.PropertyKey
	Key      any
}

func NewSetEntityDictionaryRemoveProperty(id models.EntityID, prop models.PropertyKey, key any, users models.UserSet) *SetEntityDictionaryRemoveProperty {
	return &SetEntityDictionaryRemoveProperty{base: newBase(users), EntityID: id, Property: prop, Key: key}
}

func (*SetEntityDictionaryRemoveProperty) Kind() Kind { return KindSetEntityDictionaryRemoveProperty }

func (o *SetEntityDictionaryRemoveProperty) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *SetEntityDictionaryRemoveProperty) ToBytable(models.UserID) (codec.Bytable, error) {
	key, err := codec.Value(o.Key)
	if err != nil {
		return codec.Empty, fmt.Errorf("dictionary key: %w", err)
	}
	return codec.Join(
		header(KindSetEntityDictionaryRemoveProperty),
		codec.Uint64(uint64(o.EntityID)),
		codec.Uint32(uint32(o.Property)),
		key,
	), nil
}

func (o *SetEntityDictionaryRemoveProperty) ToDto(models.UserID) Dto {
	return &SetEntityDictionaryRemovePropertyDto{
		dtoHeader: dtoHeader{Type: KindSetEntityDictionaryRemoveProperty.String()},
		EntityID:  o.EntityID,
		Property:  o.Property,
		Key:       o.Key,
	}
}

// MultiSetEntityProperty broadcasts one value to the same property of several
// entities.
type MultiSetEntityProperty struct {
	base
	EntityIDs []models.EntityID
	Property  models.PropertyKey
	Value     any
}

func NewMultiSetEntityProperty(ids []models.EntityID, key models.PropertyKey, value any, users models.UserSet) *MultiSetEntityProperty {
	return &MultiSetEntityProperty{base: newBase(users), EntityIDs: slices.Clone(ids), Property: key, Value: value}
}

func (*MultiSetEntityProperty) Kind() Kind { return KindMultiSetEntityProperty }

func (o *MultiSetEntityProperty) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *MultiSetEntityProperty) ToBytable(user models.UserID) (codec.Bytable, error) {
	v, err := valueBytable(o.Value, user)
	if err != nil {
		return codec.Empty, fmt.Errorf("%s: %w", KindMultiSetEntityProperty, err)
	}
	ids := make([]uint64, len(o.EntityIDs))
	for i, id := range o.EntityIDs {
		ids[i] = uint64(id)
	}
	return codec.Join(
		header(KindMultiSetEntityProperty),
		codec.Uint64s(ids),
		codec.Uint32(uint32(o.Property)),
		v,
	), nil
}

func (o *MultiSetEntityProperty) ToDto(user models.UserID) Dto {
	return &MultiSetEntityPropertyDto{
		dtoHeader: dtoHeader{Type: KindMultiSetEntityProperty.String()},
		EntityIDs: slices.Clone(o.EntityIDs),
		Property:  o.Property,
		Value:     Resolve(o.Value, user),
	}
}

// StartInterpolationProperty marks the start of a client-side transition of a
// property, from Value.
type StartInterpolationProperty struct {
	base
	property
}

func NewStartInterpolationProperty(id models.EntityID, key models.PropertyKey, start any, users models.UserSet) *StartInterpolationProperty {
	return &StartInterpolationProperty{base: newBase(users), property: property{EntityID: id, Property: key, Value: start}}
}

func (*StartInterpolationProperty) Kind() Kind { return KindStartInterpolationProperty }

func (o *StartInterpolationProperty) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *StartInterpolationProperty) ToBytable(user models.UserID) (codec.Bytable, error) {
	return o.bytable(KindStartInterpolationProperty, user)
}

func (o *StartInterpolationProperty) ToDto(user models.UserID) Dto {
	return &StartInterpolationPropertyDto{SetEntityPropertyDto: o.dto(KindStartInterpolationProperty, user)}
}

// StopInterpolationProperty ends a client-side transition at Value.
type StopInterpolationProperty struct {
	base
	property
}

func NewStopInterpolationProperty(id models.EntityID, key models.PropertyKey, stop any, users models.UserSet) *StopInterpolationProperty {
	return &StopInterpolationProperty{base: newBase(users), property: property{EntityID: id, Property: key, Value: stop}}
}

func (*StopInterpolationProperty) Kind() Kind { return KindStopInterpolationProperty }

func (o *StopInterpolationProperty) WithUsers(users models.UserSet) Operation {
	c := *o
	c.base = newBase(users)
	return &c
}

func (o *StopInterpolationProperty) ToBytable(user models.UserID) (codec.Bytable, error) {
	return o.bytable(KindStopInterpolationProperty, user)
}

func (o *StopInterpolationProperty) ToDto(user models.UserID) Dto {
	return &StopInterpolationPropertyDto{SetEntityPropertyDto: o.dto(KindStopInterpolationProperty, user)}
}
