// Package rollover implements the ROLLOVER event handler of §4.9. It
// mutates no state itself — it sequences calls into the Aborter, the
// mapping store, the quote ladders and the venue clients, returning
// a report the engine logs and (on fail-closed) acts on.
package rollover

import (
	"context"
	"fmt"

	"github.com/arbengine/boxarb/internal/interval"
	"github.com/arbengine/boxarb/internal/mapping"
	"github.com/arbengine/boxarb/internal/quote"
	"github.com/arbengine/boxarb/internal/venue"
)

// Aborter is satisfied by the engine: the orchestrator never touches
// executor internals directly, only this narrow callback.
type Aborter interface {
	AbortCurrent(reason string)
}

// Report summarizes one rollover pass for the event log.
type Report struct {
	PriorKey        interval.Key
	NewKey          interval.Key
	AbortedExecution bool
	CancelErrors    []error
	MappingInstalled bool
	FailClosed      bool
}

type Orchestrator struct {
	clientA venue.Client
	clientB venue.Client
	store   *mapping.Store
	ladders func() (*quote.Ladder, *quote.Ladder, *quote.Ladder, *quote.Ladder) // yesA,noA,yesB,noB
}

func New(clientA, clientB venue.Client, store *mapping.Store, ladders func() (*quote.Ladder, *quote.Ladder, *quote.Ladder, *quote.Ladder)) *Orchestrator {
	return &Orchestrator{clientA: clientA, clientB: clientB, store: store, ladders: ladders}
}

// Rollover runs the §4.9 sequence. prefetched is the mapping discovered
// during the prior interval's PREPARE event, or nil if discovery failed
// or never ran — in which case the new interval fails closed.
func (o *Orchestrator) Rollover(ctx context.Context, exec Aborter, busy bool, priorKey, newKey interval.Key, prefetched *mapping.Mapping) Report {
	rep := Report{PriorKey: priorKey, NewKey: newKey}

	if busy {
		exec.AbortCurrent("rollover")
		rep.AbortedExecution = true
	}

	if err := o.clientA.CancelAll(ctx, fmt.Sprintf("%d-%d", priorKey.StartTs, priorKey.EndTs)); err != nil {
		rep.CancelErrors = append(rep.CancelErrors, err)
	}
	if err := o.clientB.CancelAll(ctx, fmt.Sprintf("%d-%d", priorKey.StartTs, priorKey.EndTs)); err != nil {
		rep.CancelErrors = append(rep.CancelErrors, err)
	}

	if o.ladders != nil {
		yesA, noA, yesB, noB := o.ladders()
		for _, l := range []*quote.Ladder{yesA, noA, yesB, noB} {
			if l != nil {
				l.Clear()
			}
		}
	}
	o.store.Clear(priorKey)

	if prefetched == nil {
		rep.FailClosed = true
		return rep
	}
	o.store.SetMapping(newKey, *prefetched)
	rep.MappingInstalled = true
	return rep
}
