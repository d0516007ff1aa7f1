package users

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/scenesync/internal/core/events/bus"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/core/observability/metrics"
)

// Membership event types. Event data is the models.UserID concerned.
const (
	EventUserActive    = "user.active"
	EventUserRefreshed = "user.refreshed"
	EventUserMissing   = "user.missing"
	EventUserLeave     = "user.leave"
)

const eventSource = "users"

type Status uint8

const (
	StatusJoined Status = iota
	StatusActive
	StatusMissing
)

var statuses = []Status{StatusJoined, StatusActive, StatusMissing}

func (s Status) String() string {
	switch s {
	case StatusJoined:
		return "joined"
	case StatusActive:
		return "active"
	case StatusMissing:
		return "missing"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// User is a snapshot of a registered user.
type User struct {
	ID      models.UserID
	Status  Status
	Joined  time.Time
	Changed time.Time
}

// Registry tracks the users of one environment. Status changes are published
// on the bus after the registry lock is released, so handlers may call back.
type Registry struct {
	mu     sync.RWMutex
	logger log.Log
	bus    bus.EventBus
	users  map[models.UserID]*User
}

func NewRegistry(b bus.EventBus, logger log.Log) *Registry {
	return &Registry{
		logger: logger.With(log.String("component", "users")),
		bus:    b,
		users:  make(map[models.UserID]*User),
	}
}

// Join registers a user. An empty id gets a fresh uuid.
func (r *Registry) Join(id models.UserID) (models.UserID, error) {
	if id == "" {
		id = models.UserID(uuid.NewString())
	}

	r.mu.Lock()
	if _, ok := r.users[id]; ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUserExists, id)
	}
	now := time.Now()
	r.users[id] = &User{ID: id, Status: StatusJoined, Joined: now, Changed: now}
	r.updateGaugesLocked()
	r.mu.Unlock()

	r.logger.Info("User joined", log.User(string(id)))
	return id, nil
}

// SetActive marks a user ready to receive operations. Activating an active
// user is a refresh.
func (r *Registry) SetActive(id models.UserID) error {
	r.mu.Lock()
	u, ok := r.users[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownUser, id)
	}
	event := EventUserActive
	if u.Status == StatusActive {
		event = EventUserRefreshed
	}
	r.setLocked(u, StatusActive)
	r.mu.Unlock()

	return r.publish(event, id)
}

// Refresh asks for the full state to be sent to an active user again.
func (r *Registry) Refresh(id models.UserID) error {
	r.mu.RLock()
	u, ok := r.users[id]
	active := ok && u.Status == StatusActive
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, id)
	}
	if !active {
		return fmt.Errorf("%w: %s", ErrNotActive, id)
	}
	return r.publish(EventUserRefreshed, id)
}

// SetMissing marks a user whose connection dropped but who may come back.
func (r *Registry) SetMissing(id models.UserID) error {
	r.mu.Lock()
	u, ok := r.users[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownUser, id)
	}
	r.setLocked(u, StatusMissing)
	r.mu.Unlock()

	return r.publish(EventUserMissing, id)
}

// Leave unregisters a user.
func (r *Registry) Leave(id models.UserID) error {
	r.mu.Lock()
	if _, ok := r.users[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownUser, id)
	}
	delete(r.users, id)
	r.updateGaugesLocked()
	r.mu.Unlock()

	r.logger.Info("User left", log.User(string(id)))
	return r.publish(EventUserLeave, id)
}

// Active returns the users currently receiving operations.
func (r *Registry) Active() models.UserSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := models.UserSet{}
	for id, u := range r.users {
		if u.Status == StatusActive {
			out[id] = struct{}{}
		}
	}
	return out
}

func (r *Registry) Get(id models.UserID) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *Registry) setLocked(u *User, status Status) {
	u.Status = status
	u.Changed = time.Now()
	r.updateGaugesLocked()
}

func (r *Registry) updateGaugesLocked() {
	counts := make(map[Status]int, len(statuses))
	for _, u := range r.users {
		counts[u.Status]++
	}
	for _, s := range statuses {
		metrics.Users.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}

func (r *Registry) publish(event string, id models.UserID) error {
	if err := r.bus.Publish(bus.NewEvent(event, eventSource, id)); err != nil {
		r.logger.Warn("Membership handlers failed", log.String("event", event), log.User(string(id)), log.Error(err))
		return fmt.Errorf("%s %s: %w", event, id, err)
	}
	return nil
}

// UserOf returns the user a membership event is about.
func UserOf(e bus.Event) (models.UserID, bool) {
	id, ok := e.Data().(models.UserID)
	return id, ok
}
