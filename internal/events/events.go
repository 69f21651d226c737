// Package events delivers LinkCreated facts to interested listeners.
//
// Publishers never know who is listening. Listeners decide what they want to
// see with a Filter evaluated on their side of the subscription.
package events

import (
	"context"
	"errors"
	"time"

	"opmelink-api/internal/model"
	"opmelink-api/pkg/uid"
)

// LinkCreated is emitted once per newly created LinkedImplant row, never on increment.
type LinkCreated struct {
	ID      string    `json:"id"`
	OwnerID string    `json:"owner_id"`
	CaseID  int64     `json:"case_id"`
	Barcode string    `json:"barcode"`
	At      time.Time `json:"at"`

	// Origin identifies the instance that produced the event.
	Origin string `json:"origin,omitempty"`
}

// NewLinkCreated builds the event for link.
func NewLinkCreated(link model.LinkedImplant) LinkCreated {
	return LinkCreated{
		ID:      uid.New(),
		OwnerID: link.OwnerID,
		CaseID:  link.CaseID,
		Barcode: link.Barcode,
		At:      link.FirstLinkedAt,
	}
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev LinkCreated) error
}

// Filter selects the events a subscriber receives.
type Filter func(ev LinkCreated) bool

// ReceptionFilter lets through events of the principal's owner, and only when
// the principal holds the reception role.
func ReceptionFilter(p model.Principal) Filter {
	return func(ev LinkCreated) bool {
		return p.Role == model.RoleReception && ev.OwnerID == p.OwnerID
	}
}

// MultiPublisher publishes to every publisher, in order. One failing target
// does not stop delivery to the others.
type MultiPublisher []Publisher

// Publish returns the joined errors of the failing publishers.
func (m MultiPublisher) Publish(ctx context.Context, ev LinkCreated) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, LinkCreated) error { return nil }
