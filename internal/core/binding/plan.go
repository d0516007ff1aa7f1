package binding

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/scenesync/internal/core/models"
)

// fingerprint identifies a binding value by its id and the ids of its parts.
// Users whose effective bindings share a fingerprint are processed as one
// group. The nil binding has fingerprint zero.
func fingerprint(b Binding) uint64 {
	if b == nil {
		return 0
	}
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(b.ID()))
	_, _ = d.Write(buf[:])
	for _, s := range b.Singles() {
		binary.LittleEndian.PutUint64(buf[:], uint64(s.ID()))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// change is the move of one binding value to the next. from and to are nil
// when the node had, or ends with, no binding.
type change struct {
	from Binding
	to   Binding
	skip bool
}

type transition func(from Binding) (change, error)

// planner applies a transition once per distinct binding value, so every
// group starting from the same binding ends on the same new entity.
type planner struct {
	next transition
	memo map[uint64]change
}

func newPlanner(next transition) *planner {
	return &planner{next: next, memo: make(map[uint64]change)}
}

func (p *planner) plan(from Binding) (change, error) {
	key := fingerprint(from)
	if c, ok := p.memo[key]; ok {
		return c, nil
	}
	c, err := p.next(from)
	if err != nil {
		return change{}, err
	}
	p.memo[key] = c
	return c, nil
}

// touched returns every binding a planned change starts or ends on.
func (p *planner) touched() []Binding {
	var out []Binding
	for _, c := range p.memo {
		if c.from != nil {
			out = append(out, c.from)
		}
		if c.to != nil {
			out = append(out, c.to)
		}
	}
	return out
}

type group struct {
	binding Binding
	users   models.UserSet
}

func (m *Manager) upgrade(b Binding) transition {
	return func(from Binding) (change, error) {
		switch {
		case from == nil:
			return change{to: b}, nil
		case contains(from, b):
			return change{skip: true}, nil
		}
		multi, err := NewMultiBinding(from, b)
		if err != nil {
			return change{}, err
		}
		m.entities.ID(multi)
		return change{from: from, to: multi}, nil
	}
}

func (m *Manager) downgrade(b Binding) transition {
	return func(from Binding) (change, error) {
		if from == nil {
			return change{skip: true}, nil
		}
		if from.ID() == b.ID() {
			return change{from: from}, nil
		}
		rest := without(from, b)
		switch len(rest) {
		case len(from.Singles()):
			return change{skip: true}, nil
		case 0:
			return change{from: from}, nil
		case 1:
			m.entities.ID(rest[0])
			return change{from: from, to: rest[0]}, nil
		}
		parts := make([]Binding, len(rest))
		for i, s := range rest {
			parts[i] = s
		}
		multi, err := NewMultiBinding(parts...)
		if err != nil {
			return change{}, err
		}
		m.entities.ID(multi)
		return change{from: from, to: multi}, nil
	}
}

func clearAll(from Binding) (change, error) {
	if from == nil {
		return change{skip: true}, nil
	}
	return change{from: from}, nil
}
