package operation

import (
	"fmt"

	"github.com/zeusync/scenesync/internal/core/codec"
	"github.com/zeusync/scenesync/internal/core/models"
)

// UserValue is a property value that differs per recipient, such as a private
// property.
type UserValue interface {
	ValueFor(user models.UserID) any
}

// PerUser holds a default value and per-user overrides.
type PerUser struct {
	Default   any
	Overrides map[models.UserID]any
}

func (p PerUser) ValueFor(user models.UserID) any {
	if v, ok := p.Overrides[user]; ok {
		return v
	}
	return p.Default
}

// Resolve returns the concrete value v takes for user.
func Resolve(v any, user models.UserID) any {
	if uv, ok := v.(UserValue); ok {
		return uv.ValueFor(user)
	}
	return v
}

func valueBytable(v any, user models.UserID) (codec.Bytable, error) {
	b, err := codec.Value(Resolve(v, user))
	if err != nil {
		return codec.Empty, fmt.Errorf("encode value: %w", err)
	}
	return b, nil
}
