package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/scenesync/internal/core/codec"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/core/operation"
	"github.com/zeusync/scenesync/internal/core/transaction"
)

func users(ids ...models.UserID) models.UserSet { return models.NewUserSet(ids...) }

func sampleTransaction() *transaction.Transaction {
	return transaction.New(true,
		operation.NewDeleteEntity(7, users("a", "b")),
		operation.NewSetEntityProperty(7, models.PropertyName, "only-b", users("b")),
	)
}

func newDispatcher(t *testing.T, sink Sink, opts Options) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(sink, opts, log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDispatchBinary(t *testing.T) {
	sink := NewMemorySink()
	d := newDispatcher(t, sink, DefaultOptions())

	require.NoError(t, d.Dispatch(context.Background(), sampleTransaction(), users("a", "b", "c")))

	assert.Empty(t, sink.Messages("c"), "users with nothing to receive get nothing")
	a := sink.Messages("a")
	require.Len(t, a, 1)
	assert.True(t, a[0].Reliable)

	r := codec.NewReader(a[0].Payload)
	assert.Equal(t, uint32(operation.KindTransaction), r.Uint32())
	assert.Equal(t, uint32(operation.KindDeleteEntity), r.Uint32())
	assert.Equal(t, uint64(7), r.Uint64())
	assert.Zero(t, r.Remaining())

	b := sink.Messages("b")
	require.Len(t, b, 1)
	assert.Greater(t, len(b[0].Payload), len(a[0].Payload))
}

func TestDispatchJSONWithCompression(t *testing.T) {
	sink := NewMemorySink()
	d := newDispatcher(t, sink, Options{Encoding: EncodingJSON, Compression: CompressionZstd, Parallelism: 1})

	require.NoError(t, d.Dispatch(context.Background(), sampleTransaction(), users("b")))
	msgs := sink.Messages("b")
	require.Len(t, msgs, 1)

	raw, err := Decompress(msgs[0].Payload)
	require.NoError(t, err)

	var got struct {
		Reliable   bool             `json:"reliable"`
		Operations []map[string]any `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.True(t, got.Reliable)
	require.Len(t, got.Operations, 2)
	assert.Equal(t, "DeleteEntity", got.Operations[0]["type"])
	assert.Equal(t, "only-b", got.Operations[1]["value"])
}

func TestDispatchJoinsFailures(t *testing.T) {
	sink := NewMemorySink()
	down := errors.New("connection reset")
	sink.FailFor("a", down)
	d := newDispatcher(t, sink, DefaultOptions())

	err := d.Dispatch(context.Background(), sampleTransaction(), users("a", "b"))
	assert.ErrorIs(t, err, down)
	assert.Len(t, sink.Messages("b"), 1, "one failing user does not block the others")

	sink.FailFor("a", nil)
	sink.Reset()
	require.NoError(t, d.Dispatch(context.Background(), sampleTransaction(), users("a")))
	assert.Equal(t, 1, sink.Len())
}

func TestDispatchReportsEncodingErrors(t *testing.T) {
	sink := NewMemorySink()
	d := newDispatcher(t, sink, DefaultOptions())
	tx := transaction.New(false, operation.NewLoadEntity(models.NewNode("loose"), users("a")))

	err := d.Dispatch(context.Background(), tx, users("a"))
	assert.ErrorIs(t, err, operation.ErrUnregisteredEntity)
	assert.Zero(t, sink.Len())
}

func TestDispatchHonoursCancellation(t *testing.T) {
	sink := NewMemorySink()
	d := newDispatcher(t, sink, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Dispatch(ctx, sampleTransaction(), users("a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatchEmptyTransaction(t *testing.T) {
	sink := NewMemorySink()
	d := newDispatcher(t, sink, DefaultOptions())
	assert.NoError(t, d.Dispatch(context.Background(), transaction.New(true), users("a")))
	assert.NoError(t, d.Dispatch(context.Background(), nil, users("a")))
	assert.Zero(t, sink.Len())
}

func TestNewDispatcherValidatesOptions(t *testing.T) {
	_, err := NewDispatcher(NewMemorySink(), Options{Encoding: "xml"}, log.NewNop())
	assert.ErrorIs(t, err, ErrUnknownEncoding)

	_, err = NewDispatcher(NewMemorySink(), Options{Encoding: EncodingBinary, Compression: "lz4"}, log.NewNop())
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestDecompressSharesOneDecoder(t *testing.T) {
	sink := NewMemorySink()
	d := newDispatcher(t, sink, Options{Encoding: EncodingBinary, Compression: CompressionZstd, Parallelism: 1})
	require.NoError(t, d.Dispatch(context.Background(), sampleTransaction(), users("a")))
	msgs := sink.Messages("a")
	require.Len(t, msgs, 1)

	first, err := decoder()
	require.NoError(t, err)
	second, err := decoder()
	require.NoError(t, err)
	assert.Same(t, first, second)

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			raw, err := Decompress(msgs[0].Payload)
			if err != nil {
				return err
			}
			if uint32(operation.KindTransaction) != codec.NewReader(raw).Uint32() {
				return errors.New("unexpected payload")
			}
			return nil
		})
	}
	assert.NoError(t, g.Wait())
}
