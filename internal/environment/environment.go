package environment

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/scenesync/internal/core/binding"
	"github.com/zeusync/scenesync/internal/core/dispatch"
	"github.com/zeusync/scenesync/internal/core/events/bus"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/core/observability/metrics"
	"github.com/zeusync/scenesync/internal/core/operation"
	"github.com/zeusync/scenesync/internal/core/transaction"
	"github.com/zeusync/scenesync/internal/core/users"
)

type Config struct {
	// TickInterval is the period of Run's flushes.
	TickInterval time.Duration
	// Reliable marks every flushed transaction for the reliable channel.
	Reliable bool
	// RootName names the environment's root node.
	RootName string
}

func DefaultConfig() Config {
	return Config{
		TickInterval: 50 * time.Millisecond,
		Reliable:     true,
		RootName:     "environment",
	}
}

// Environment is one shared scene. Producers queue operations; every tick the
// pending transaction is simplified and dispatched to the active users.
type Environment struct {
	config Config
	logger log.Log

	entities   *models.Registry
	bus        bus.EventBus
	users      *users.Registry
	bindings   *binding.Manager
	dispatcher *dispatch.Dispatcher

	root *models.Node

	mu      sync.Mutex
	pending *transaction.Transaction
	nodes   map[models.EntityID]*models.Node

	subscriptions []bus.Subscription
	closed        atomic.Bool
}

// New builds an environment over the given registries and subscribes it to
// the membership events of userRegistry.
func New(
	config Config,
	entities *models.Registry,
	eventBus bus.EventBus,
	userRegistry *users.Registry,
	dispatcher *dispatch.Dispatcher,
	logger log.Log,
) (*Environment, error) {
	if config.TickInterval <= 0 {
		return nil, fmt.Errorf("%w: tick interval %s", ErrInvalidConfig, config.TickInterval)
	}
	if config.RootName == "" {
		config.RootName = DefaultConfig().RootName
	}

	root := models.NewNode(config.RootName)
	rootID := entities.ID(root)

	e := &Environment{
		config:     config,
		logger:     logger.With(log.String("component", "environment")),
		entities:   entities,
		bus:        eventBus,
		users:      userRegistry,
		bindings:   binding.NewManager(rootID, entities, userRegistry, logger),
		dispatcher: dispatcher,
		root:       root,
		pending:    transaction.New(config.Reliable),
		nodes:      make(map[models.EntityID]*models.Node),
	}

	handlers := map[string]func(models.UserID){
		users.EventUserActive:    func(u models.UserID) { e.welcome(u, false) },
		users.EventUserRefreshed: func(u models.UserID) { e.welcome(u, true) },
		users.EventUserMissing:   e.bindings.ForgetDispatch,
		users.EventUserLeave:     e.bindings.CleanBindings,
	}
	for _, event := range slices.Sorted(maps.Keys(handlers)) {
		sub, err := eventBus.Subscribe(event, membershipHandler(handlers[event]))
		if err != nil {
			_ = e.unsubscribe()
			return nil, fmt.Errorf("subscribe %s: %w", event, err)
		}
		e.subscriptions = append(e.subscriptions, sub)
	}

	e.logger.Info("Environment created", log.Entity(uint64(rootID)), log.Duration("tick_interval", config.TickInterval))
	return e, nil
}

func membershipHandler(fn func(models.UserID)) bus.EventHandler {
	return func(event bus.Event) error {
		user, ok := users.UserOf(event)
		if !ok {
			return fmt.Errorf("event %s carries no user", event.Type())
		}
		fn(user)
		return nil
	}
}

// welcome queues the whole scene for user: the root, every node, then the
// bindings the user sees.
func (e *Environment) welcome(user models.UserID, again bool) {
	only := models.NewUserSet(user)

	e.mu.Lock()
	ops := []operation.Operation{operation.NewLoadEntity(e.root, only)}
	for _, id := range slices.Sorted(maps.Keys(e.nodes)) {
		ops = append(ops, operation.NewLoadEntity(e.nodes[id], only))
	}
	e.mu.Unlock()

	if again {
		ops = append(ops, e.bindings.ReDispatchBindings(user)...)
	} else {
		ops = append(ops, e.bindings.DispatchBindings(user)...)
	}
	e.Queue(ops...)
	e.logger.Debug("User welcomed", log.User(string(user)), log.Bool("again", again), log.Int("operations", len(ops)))
}

// Root returns the environment's root node, which carries environment wide
// properties.
func (e *Environment) Root() *models.Node { return e.root }

func (e *Environment) Entities() *models.Registry { return e.entities }

func (e *Environment) Users() *users.Registry { return e.users }

func (e *Environment) Bindings() *binding.Manager { return e.bindings }

// Queue adds operations to the pending transaction. Nil and empty operations
// are dropped.
func (e *Environment) Queue(ops ...operation.Operation) {
	if len(ops) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending.Add(ops...)
}

// Pending returns the number of queued operations.
func (e *Environment) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.Len()
}

// Flush simplifies the pending transaction and dispatches it to every active
// user. Operations queued while Flush runs go to the next flush.
func (e *Environment) Flush(ctx context.Context) error {
	e.mu.Lock()
	tx := e.pending
	e.pending = transaction.New(e.config.Reliable)
	e.mu.Unlock()

	if tx.IsEmpty() {
		return nil
	}

	start := time.Now()
	queued := tx.Len()
	tx.Simplify()
	err := e.dispatcher.Dispatch(ctx, tx, e.users.Active())
	metrics.FlushDuration.WithLabelValues().Observe(time.Since(start).Seconds())
	metrics.FlushOperations.WithLabelValues().Add(float64(tx.Len()))

	e.logger.Debug("Flushed",
		log.String("transaction_id", tx.ID().String()),
		log.Int("queued", queued),
		log.Int("sent", tx.Len()),
		log.Duration("took", time.Since(start)),
	)
	if err != nil {
		return fmt.Errorf("flush %s: %w", tx.ID(), err)
	}
	return nil
}

// Run flushes on every tick until ctx is done. Dispatch failures are logged
// and do not stop the loop.
func (e *Environment) Run(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Flush(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn("Flush failed", log.Error(err))
			}
		}
	}
}

// Close stops reacting to membership events. Queued operations are dropped.
func (e *Environment) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := e.unsubscribe()
	e.logger.Info("Environment closed")
	return err
}

func (e *Environment) unsubscribe() error {
	var errs []error
	for _, sub := range e.subscriptions {
		if err := e.bus.Unsubscribe(sub); err != nil {
			errs = append(errs, err)
		}
	}
	e.subscriptions = nil
	return errors.Join(errs...)
}
