package common

import (
	"bookpay/src/store"
	"context"
	"log"

	"github.com/google/uuid"
)

// ServiceResync makes a professional's services bookable once their
// connected account can take payments.
type ServiceResync struct {
	store *store.Store
}

func NewServiceResync(st *store.Store) *ServiceResync {
	return &ServiceResync{store: st}
}

func (r *ServiceResync) ResyncServices(ctx context.Context, professionalID uuid.UUID) error {
	n, err := r.store.EnableServices(ctx, professionalID)
	if err != nil {
		return err
	}
	log.Printf("[Resync] professional=%s services enabled=%d\n", professionalID, n)
	return nil
}
