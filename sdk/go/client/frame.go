package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeusync/scenesync/internal/core/codec"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/operation"
)

// Frame is one transaction received from the server, already decompressed.
type Frame struct {
	Data     []byte
	Text     bool
	Received time.Time
}

// TransactionDto is the JSON form of a received transaction.
type TransactionDto struct {
	ID         string         `json:"id"`
	Reliable   bool           `json:"reliable"`
	Operations []OperationDto `json:"operations"`
}

// OperationDto keeps the common fields of an operation and its raw JSON for
// kind specific decoding.
type OperationDto struct {
	Type     string             `json:"type"`
	EntityID models.EntityID    `json:"entityId"`
	Property models.PropertyKey `json:"property"`
	Raw      json.RawMessage    `json:"-"`
}

func (o *OperationDto) UnmarshalJSON(data []byte) error {
	type plain OperationDto
	if err := json.Unmarshal(data, (*plain)(o)); err != nil {
		return err
	}
	o.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Transaction decodes a JSON frame.
func (f Frame) Transaction() (*TransactionDto, error) {
	if len(f.Data) == 0 || f.Data[0] != '{' {
		return nil, ErrNotJSON
	}
	var tx TransactionDto
	if err := json.Unmarshal(f.Data, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &tx, nil
}

// FirstOperation reads the kind of the first operation of a binary frame.
// Binary operations carry no length, so later ones need the full schema.
func (f Frame) FirstOperation() (operation.Kind, error) {
	if f.Text {
		return 0, ErrNotBinary
	}
	r := codec.NewReader(f.Data)
	if kind := operation.Kind(r.Uint32()); kind != operation.KindTransaction {
		return 0, fmt.Errorf("%w: leading kind %s", ErrNotBinary, kind)
	}
	kind := operation.Kind(r.Uint32())
	if err := r.Err(); err != nil {
		return 0, err
	}
	return kind, nil
}
