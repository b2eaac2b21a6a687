package escrow

import (
	"context"

	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/looplab/fsm"
)

const (
	eventReserve = "reserve"
	eventExecute = "execute"
	eventReclaim = "reclaim"
)

// newReservationFSM returns the lifecycle of one (owner, nonce) key positioned at status:
//
//	draft --reserve--> active --execute--> completed
//	                   active --reclaim--> reclaimed
func newReservationFSM(status model.Status) *fsm.FSM {
	return fsm.NewFSM(
		status.String(),
		fsm.Events{
			{
				Name: eventReserve,
				Src:  []string{model.StatusDraft.String()},
				Dst:  model.StatusActive.String(),
			},
			{
				Name: eventExecute,
				Src:  []string{model.StatusActive.String()},
				Dst:  model.StatusCompleted.String(),
			},
			{
				Name: eventReclaim,
				Src:  []string{model.StatusActive.String()},
				Dst:  model.StatusReclaimed.String(),
			},
		},
		fsm.Callbacks{},
	)
}

// transition applies event to status. ok is false when the event is not allowed from status.
func transition(status model.Status, event string) (next model.Status, ok bool) {
	machine := newReservationFSM(status)

	if !machine.Can(event) {
		return status, false
	}

	if err := machine.Event(context.Background(), event); err != nil {
		return status, false
	}

	if err := next.UnmarshalText([]byte(machine.Current())); err != nil {
		return status, false
	}

	return next, true
}
