package transaction

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/zeusync/scenesync/internal/core/codec"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/operation"
)

// Transaction is an ordered batch of operations flushed together. Reliable
// selects the delivery channel. A Transaction is owned by one producer and is
// not safe for concurrent use.
type Transaction struct {
	id       uuid.UUID
	reliable bool
	ops      []operation.Operation
}

// Dto is the structured form of a transaction for one recipient.
type Dto struct {
	ID         string          `json:"id"`
	Reliable   bool            `json:"reliable"`
	Operations []operation.Dto `json:"operations"`
}

func New(reliable bool, ops ...operation.Operation) *Transaction {
	t := &Transaction{id: uuid.New(), reliable: reliable}
	t.Add(ops...)
	return t
}

func (t *Transaction) ID() uuid.UUID { return t.id }

func (t *Transaction) Reliable() bool { return t.reliable }

func (t *Transaction) SetReliable(reliable bool) { t.reliable = reliable }

// Add appends operations in order. Nil operations and operations addressed to
// nobody are dropped. It returns how many were kept.
func (t *Transaction) Add(ops ...operation.Operation) int {
	kept := 0
	for _, op := range ops {
		if operation.IsEmpty(op) {
			continue
		}
		t.ops = append(t.ops, op)
		kept++
	}
	return kept
}

// Operations returns a copy of the operation list.
func (t *Transaction) Operations() []operation.Operation {
	return slices.Clone(t.ops)
}

func (t *Transaction) Len() int { return len(t.ops) }

func (t *Transaction) IsEmpty() bool { return len(t.ops) == 0 }

// Users returns every user at least one operation is addressed to.
func (t *Transaction) Users() models.UserSet {
	out := models.UserSet{}
	for _, op := range t.ops {
		out = out.Union(op.Users())
	}
	return out
}

// ForUser returns the view of t seen by user: the operations addressed to
// user, in order, each narrowed to that single recipient.
func (t *Transaction) ForUser(user models.UserID) *Transaction {
	only := models.NewUserSet(user)
	view := &Transaction{id: t.id, reliable: t.reliable}
	for _, op := range t.ops {
		if op.Users().Contains(user) {
			view.ops = append(view.ops, op.WithUsers(only))
		}
	}
	return view
}

// ToBytable returns [Transaction tag][op]… for the operations addressed to
// user. Operations are not individually framed.
func (t *Transaction) ToBytable(user models.UserID) (codec.Bytable, error) {
	parts := []codec.Bytable{codec.Uint32(uint32(operation.KindTransaction))}
	for i, op := range t.ops {
		if !op.Users().Contains(user) {
			continue
		}
		b, err := op.ToBytable(user)
		if err != nil {
			return codec.Empty, fmt.Errorf("operation %d (%s): %w", i, op.Kind(), err)
		}
		parts = append(parts, b)
	}
	return codec.Join(parts...), nil
}

// ToBytes allocates the declared size for user and writes the transaction.
func (t *Transaction) ToBytes(user models.UserID) ([]byte, error) {
	b, err := t.ToBytable(user)
	if err != nil {
		return nil, err
	}
	return b.Bytes()
}

// ToDto returns the structured form of the operations addressed to user.
func (t *Transaction) ToDto(user models.UserID) *Dto {
	d := &Dto{ID: t.id.String(), Reliable: t.reliable, Operations: []operation.Dto{}}
	for _, op := range t.ops {
		if op.Users().Contains(user) {
			d.Operations = append(d.Operations, op.ToDto(user))
		}
	}
	return d
}
