package cart

import (
	"errors"
	"sync"
)

var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrFinalizeInFlight  = errors.New("finalize already in flight")
	ErrFinalizeNotActive = errors.New("finalize not in flight")
)

// Registry owns the live cart sessions of this terminal. A cart is created
// when the POS view mounts and lives until checkout succeeds or the session is
// discarded; nothing here survives a restart.
//
// The busy flag enforces the one-in-flight-finalize-per-cart rule: while a
// checkout is pending, further mutation and a second finalize are rejected,
// which is the service-side equivalent of disabling the button.
type Registry struct {
	mu    sync.Mutex
	carts map[string]*entry
}

type entry struct {
	cart *Cart
	busy bool
}

func NewRegistry() *Registry {
	return &Registry{carts: make(map[string]*entry)}
}

func (r *Registry) Create(id string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := New(id)
	r.carts[id] = &entry{cart: c}
	return c.Clone()
}

func (r *Registry) Discard(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, id)
}

// Get returns a snapshot copy of the cart.
func (r *Registry) Get(id string) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.carts[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	return e.cart.Clone(), nil
}

// Mutate runs fn against the live cart under the registry lock and returns the
// resulting snapshot. Mutation is rejected while a finalize is pending.
func (r *Registry) Mutate(id string, fn func(*Cart) Notice) (*Cart, Notice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.carts[id]
	if !ok {
		return nil, "", ErrCartNotFound
	}
	if e.busy {
		return nil, "", ErrFinalizeInFlight
	}
	notice := fn(e.cart)
	return e.cart.Clone(), notice, nil
}

// BeginFinalize marks the cart busy and hands back a stable snapshot for the
// checkout submission.
func (r *Registry) BeginFinalize(id string) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.carts[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	if e.busy {
		return nil, ErrFinalizeInFlight
	}
	e.busy = true
	return e.cart.Clone(), nil
}

// EndFinalize releases the busy flag. When cleared is true the cart is reset
// to an empty session with the same id (successful checkout); otherwise it is
// left exactly as submitted so the cashier can correct and retry.
func (r *Registry) EndFinalize(id string, cleared bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.carts[id]
	if !ok {
		return ErrCartNotFound
	}
	if !e.busy {
		return ErrFinalizeNotActive
	}
	e.busy = false
	if cleared {
		e.cart = New(id)
	}
	return nil
}
