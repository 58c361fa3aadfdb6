package docgate

import (
	"context"

	"github.com/google/uuid"

	"github.com/MrEthical07/docgate/internal/audit"
)

// activitySink persists dispatched events as [Activity] rows.
type activitySink struct {
	store ActivityStore
}

func (s activitySink) Record(ctx context.Context, ev audit.Event) error {
	return s.store.RecordActivity(ctx, &Activity{
		ID:        uuid.NewString(),
		UserID:    ev.UserID,
		Action:    ActivityAction(ev.Action),
		Details:   ev.Details,
		IP:        ev.IP,
		UserAgent: ev.UserAgent,
		CreatedAt: ev.Timestamp,
	})
}

// Activity returns the latest limit activity entries of userID.
func (e *Engine) Activity(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return e.store.ListActivities(ctx, userID, limit)
}
