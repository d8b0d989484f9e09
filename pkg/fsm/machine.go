// Package fsm implements the cart refresh workflow. It reloads a user's cart
// lines, re-fetches every product snapshot and records the resulting count,
// using the superfly/fsm library so a run survives restarts.
package fsm

import (
	"context"

	"github.com/artfolio/cartstore/pkg/cart"
	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/superfly/fsm"
)

// Machine holds dependencies for FSM transitions
type Machine struct {
	store      *cart.Store
	maxRetries int
}

// NewMachine creates a new FSM machine with dependencies
func NewMachine(store *cart.Store, maxRetries int) *Machine {
	return &Machine{
		store:      store,
		maxRetries: maxRetries,
	}
}

// Register registers the cart refresh FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[RefreshRequest, RefreshResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[RefreshRequest, RefreshResponse](manager, "cart-refresh").
		Start(StateLoadLines, m.handleLoadLines).
		To(StateRefreshSnapshots, m.handleRefreshSnapshots).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}
