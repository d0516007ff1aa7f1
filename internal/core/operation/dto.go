package operation

import "github.com/zeusync/scenesync/internal/core/models"

// Dto is the structured, per-recipient form of an operation, used where the
// binary envelope is not. Type carries the operation kind name.
type Dto interface {
	OperationType() string
}

type dtoHeader struct {
	Type string `json:"type"`
}

func (h dtoHeader) OperationType() string { return h.Type }

type LoadEntityDto struct {
	dtoHeader
	EntityID models.EntityID `json:"entityId"`
	Entity   any             `json:"entity"`
}

type DeleteEntityDto struct {
	dtoHeader
	EntityID models.EntityID `json:"entityId"`
}

type SetEntityPropertyDto struct {
	dtoHeader
	EntityID models.EntityID    `json:"entityId"`
	Property models.PropertyKey `json:"property"`
	Value    any                `json:"value"`
}

type SetEntityListPropertyDto struct {
	SetEntityPropertyDto
	Index int `json:"index"`
}

type SetEntityListAddPropertyDto struct {
	SetEntityPropertyDto
	Index int `json:"index"`
}

type SetEntityListRemovePropertyDto struct {
	SetEntityPropertyDto
	Index int `json:"index"`
}

type SetEntityDictionaryPropertyDto struct {
	SetEntityPropertyDto
	Key any `json:"key"`
}

type SetEntityDictionaryAddPropertyDto struct {
	SetEntityPropertyDto
	Key any `json:"key"`
}

type SetEntityDictionaryRemovePropertyDto struct {
	dtoHeader
	EntityID models.EntityID    `json:"entityId"`
	Property models.PropertyKey `json:"property"`
	Key      any                `json:"key"`
}

type MultiSetEntityPropertyDto struct {
	dtoHeader
	EntityIDs []models.EntityID  `json:"entityIds"`
	Property  models.PropertyKey `json:"property"`
	Value     any                `json:"value"`
}

type StartInterpolationPropertyDto struct {
	SetEntityPropertyDto
}

type StopInterpolationPropertyDto struct {
	SetEntityPropertyDto
}
