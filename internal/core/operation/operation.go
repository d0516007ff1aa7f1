package operation

import (
	"fmt"

	"github.com/zeusync/scenesync/internal/core/codec"
	"github.com/zeusync/scenesync/internal/core/models"
)

// Kind is the wire tag of an operation. The set is closed: every Kind below
// has exactly one implementation in this package.
type Kind uint32

const (
	KindUnknown Kind = iota
	KindTransaction
	KindLoadEntity
	KindDeleteEntity
	KindSetEntityProperty
	KindSetEntityListProperty
	KindSetEntityListAddProperty
	KindSetEntityListRemoveProperty
	KindSetEntityDictionaryProperty
	KindSetEntityDictionaryAddProperty
	KindSetEntityDictionaryRemoveProperty
	KindMultiSetEntityProperty
	KindStartInterpolationProperty
	KindStopInterpolationProperty
)

// Kinds lists every operation kind, in tag order. KindTransaction is a frame
// tag and not an operation.
var Kinds = []Kind{
	KindLoadEntity,
	KindDeleteEntity,
	KindSetEntityProperty,
	KindSetEntityListProperty,
	KindSetEntityListAddProperty,
	KindSetEntityListRemoveProperty,
	KindSetEntityDictionaryProperty,
	KindSetEntityDictionaryAddProperty,
	KindSetEntityDictionaryRemoveProperty,
	KindMultiSetEntityProperty,
	KindStartInterpolationProperty,
	KindStopInterpolationProperty,
}

var kindNames = map[Kind]string{
	KindTransaction:                       "Transaction",
	KindLoadEntity:                        "LoadEntity",
	KindDeleteEntity:                      "DeleteEntity",
	KindSetEntityProperty:                 "SetEntityProperty",
	KindSetEntityListProperty:             "SetEntityListProperty",
	KindSetEntityListAddProperty:          "SetEntityListAddProperty",
	KindSetEntityListRemoveProperty:       "SetEntityListRemoveProperty",
	KindSetEntityDictionaryProperty:       "SetEntityDictionaryProperty",
	KindSetEntityDictionaryAddProperty:    "SetEntityDictionaryAddProperty",
	KindSetEntityDictionaryRemoveProperty: "SetEntityDictionaryRemoveProperty",
	KindMultiSetEntityProperty:            "MultiSetEntityProperty",
	KindStartInterpolationProperty:        "StartInterpolationProperty",
	KindStopInterpolationProperty:         "StopInterpolationProperty",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Operation is one addressed state change. Implementations are immutable:
// WithUsers returns a copy carrying a different target set.
type Operation interface {
	Kind() Kind
	// Users is the set of recipients. It is never nil.
	Users() models.UserSet
	// WithUsers returns a copy of the operation addressed to users.
	WithUsers(users models.UserSet) Operation
	// ToBytable returns the wire form of the operation as seen by user.
	ToBytable(user models.UserID) (codec.Bytable, error)
	// ToDto returns the structured form of the operation as seen by user.
	ToDto(user models.UserID) Dto

	sealed()
}

type base struct {
	users models.UserSet
}

func newBase(users models.UserSet) base {
	return base{users: users.Clone()}
}

func (b base) Users() models.UserSet { return b.users }

func (base) sealed() {}

// AddUsers returns op addressed to its users plus users.
func AddUsers(op Operation, users models.UserSet) Operation {
	return op.WithUsers(op.Users().Union(users))
}

// RemoveUsers returns op addressed to its users minus users. A result with no
// users carries no effect and must not be sent.
func RemoveUsers(op Operation, users models.UserSet) Operation {
	return op.WithUsers(op.Users().Difference(users))
}

// Merge unions the recipients of two operations of the same kind, keeping the
// payload of a.
func Merge(a, b Operation) (Operation, error) {
	if a.Kind() != b.Kind() {
		return nil, fmt.Errorf("%w: %s and %s", ErrKindMismatch, a.Kind(), b.Kind())
	}
	return AddUsers(a, b.Users()), nil
}

// IsEmpty reports whether op is nil or addressed to nobody.
func IsEmpty(op Operation) bool {
	return op == nil || op.Users().IsEmpty()
}

// ToBytes allocates the declared size of op and writes it.
func ToBytes(op Operation, user models.UserID) ([]byte, error) {
	b, err := op.ToBytable(user)
	if err != nil {
		return nil, err
	}
	return b.Bytes()
}

func header(k Kind) codec.Bytable {
	return codec.Uint32(uint32(k))
}
