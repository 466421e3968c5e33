package visit

import (
	"context"

	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/internal/platform/websocket"
)

const (
	EventCreated       = "visit.created"
	EventStatusChanged = "visit.status_changed"
	EventUpdated       = "visit.updated"
	EventDeleted       = "visit.deleted"
)

// publishAfterCommit fans ev out to the queue, doctor and visit topics once
// the surrounding transaction commits. A rolled back transaction publishes
// nothing.
func (s *Service) publishAfterCommit(ctx context.Context, ev websocket.Event) {
	if s.events == nil {
		return
	}
	ev.Timestamp = s.now().UTC()
	topics := []string{websocket.TopicQueue}
	if ev.DoctorID != "" {
		topics = append(topics, websocket.DoctorTopic(ev.DoctorID))
	}
	if ev.VisitID != "" {
		topics = append(topics, websocket.VisitTopic(ev.VisitID))
	}
	pubCtx := context.WithoutCancel(ctx)
	db.AfterCommit(ctx, func() {
		for _, topic := range topics {
			ev.Topic = topic
			_ = s.events.Publish(pubCtx, ev)
		}
	})
}

func visitEvent(typ string, v *Visit) websocket.Event {
	return websocket.Event{
		Type:      typ,
		VisitID:   v.ID,
		PatientID: v.PatientID,
		DoctorID:  v.DoctorID,
		To:        v.Status.String(),
	}
}
