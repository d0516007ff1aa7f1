package models

import "sync/atomic"

// EntityID identifies an entity within one environment. Zero means the entity
// has not been registered yet.
type EntityID uint64

// Entity is anything addressable by operations. Implementations embed Handle,
// which the Registry fills in on first use.
type Entity interface {
	ID() EntityID
	handle() *Handle
}

// Handle carries the lazily assigned id of an entity. It must not be copied
// after first use.
type Handle struct {
	id atomic.Uint64
}

// ID returns the registered id, or zero when the entity is not registered.
func (h *Handle) ID() EntityID {
	return EntityID(h.id.Load())
}

func (h *Handle) handle() *Handle {
	return h
}

// PropertyKey identifies a property of an entity on the wire.
type PropertyKey uint32

const (
	PropertyNone PropertyKey = iota
	PropertyPosition
	PropertyRotation
	PropertyScale
	PropertyName
	PropertyActive
	PropertyBindingsActivated

	// PropertyCustomStart is the first key available to application entities.
	PropertyCustomStart PropertyKey = 1000
)
