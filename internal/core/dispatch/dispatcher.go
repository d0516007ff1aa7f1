package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/core/observability/metrics"
	"github.com/zeusync/scenesync/internal/core/transaction"
	"github.com/zeusync/scenesync/pkg/generic"
)

var buffers = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

// Sink delivers one encoded transaction to one user. Reliable selects the
// channel; sinks without an unreliable channel may ignore it.
type Sink interface {
	Send(ctx context.Context, user models.UserID, reliable bool, payload []byte) error
}

type Encoding string

const (
	EncodingBinary Encoding = "binary"
	EncodingJSON   Encoding = "json"
)

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

type Options struct {
	Encoding    Encoding
	Compression Compression
	// Parallelism bounds concurrent sends. Zero or less means one per user.
	Parallelism int
}

func DefaultOptions() Options {
	return Options{Encoding: EncodingBinary, Compression: CompressionNone, Parallelism: 16}
}

// Dispatcher encodes a transaction per recipient and hands it to a Sink.
type Dispatcher struct {
	sink    Sink
	opts    Options
	logger  log.Log
	encoder *zstd.Encoder
}

func NewDispatcher(sink Sink, opts Options, logger log.Log) (*Dispatcher, error) {
	switch opts.Encoding {
	case EncodingBinary, EncodingJSON:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, opts.Encoding)
	}

	d := &Dispatcher{
		sink:   sink,
		opts:   opts,
		logger: logger.With(log.String("component", "dispatch")),
	}
	switch opts.Compression {
	case CompressionNone, "":
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		d.encoder = enc
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, opts.Compression)
	}
	return d, nil
}

// Encode returns the payload user receives for tx.
func (d *Dispatcher) Encode(tx *transaction.Transaction, user models.UserID) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	if d.opts.Encoding == EncodingJSON {
		payload, err = encodeJSON(tx.ToDto(user))
	} else {
		payload, err = tx.ToBytes(user)
	}
	if err != nil {
		return nil, err
	}
	if d.encoder != nil {
		payload = d.encoder.EncodeAll(payload, make([]byte, 0, len(payload)))
	}
	return payload, nil
}

// encodeJSON marshals v without the trailing newline of json.Encoder.
func encodeJSON(v any) ([]byte, error) {
	buf := buffers.Get()
	defer buffers.Put(buf)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return bytes.Clone(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// Dispatch sends tx to every user in users that has at least one operation in
// it. Sends run concurrently; every failure is returned joined.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *transaction.Transaction, users models.UserSet) error {
	if tx == nil || tx.IsEmpty() {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(reason string, user models.UserID, err error) {
		metrics.DispatchFailures.WithLabelValues(reason).Inc()
		d.logger.Warn("Dispatch failed", log.String("reason", reason), log.User(string(user)), log.Error(err))
		mu.Lock()
		errs = append(errs, fmt.Errorf("user %s: %w", user, err))
		mu.Unlock()
	}

	g := new(errgroup.Group)
	if d.opts.Parallelism > 0 {
		g.SetLimit(d.opts.Parallelism)
	}
	for _, user := range users.Sorted() {
		view := tx.ForUser(user)
		if view.IsEmpty() {
			continue
		}
		g.Go(func() error {
			payload, err := d.Encode(view, user)
			if err != nil {
				fail("encode", user, err)
				return nil
			}
			metrics.DispatchBytes.WithLabelValues(string(d.opts.Encoding)).Observe(float64(len(payload)))
			if err := d.sink.Send(ctx, user, tx.Reliable(), payload); err != nil {
				fail("send", user, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Close releases the compressor.
func (d *Dispatcher) Close() error {
	if d.encoder != nil {
		return d.encoder.Close()
	}
	return nil
}

// decoder is shared by every Decompress call; DecodeAll is safe for
// concurrent use.
var decoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

// Decompress reverses zstd compression applied by a Dispatcher.
func Decompress(payload []byte) ([]byte, error) {
	dec, err := decoder()
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return dec.DecodeAll(payload, nil)
}
