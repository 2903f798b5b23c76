package app

import (
	"context"
	"log"
	"time"

	"skylink/pkg/proto"
	"skylink/pkg/store"
)

// Reconciler polls external connectivity and turns it into settled
// state: at most one connected/disconnected event per real transition,
// with the last settled state persisted so a restart starts from it.
type Reconciler struct {
	session  *Session
	kv       *store.Store
	bus      *Bus
	interval time.Duration

	last   bool
	seeded bool
}

func NewReconciler(session *Session, kv *store.Store, bus *Bus, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Reconciler{
		session:  session,
		kv:       kv,
		bus:      bus,
		interval: interval,
	}
}

// Run polls until ctx is done. The first tick is immediate so a fresh
// start settles without waiting out a full interval.
func (r *Reconciler) Run(ctx context.Context) error {
	log.Printf("reconciler started interval=%s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	if !r.seeded {
		r.seed(ctx)
	}
	observed := r.session.IsConnected(ctx)
	if observed == r.last {
		return
	}
	r.last = observed

	state := proto.StateDisconnected
	event := EventDisconnected
	if observed {
		state = proto.StateConnected
		event = EventConnected
	}
	if err := r.kv.PutBool(ctx, keyLastConnState, observed); err != nil {
		log.Printf("reconciler persist failed: %v", err)
	}
	r.session.settle(state)
	log.Printf("connection state changed connected=%t", observed)
	r.bus.Publish(event)
}

// seed restores the previous settled state so an unchanged reality
// produces no spurious event on restart.
func (r *Reconciler) seed(ctx context.Context) {
	r.seeded = true
	v, err := r.kv.GetBool(ctx, keyLastConnState)
	if err != nil {
		log.Printf("reconciler seed read failed: %v", err)
		return
	}
	r.last = v
	if v {
		r.session.settle(proto.StateConnected)
	}
}
