package services

import (
	"context"

	"peercall/internal/core/domain"
	"peercall/internal/core/ports"

	"go.uber.org/zap"
)

type signalingRelay struct {
	directory ports.RoomDirectory
	sender    ports.PeerSender
	metrics   ports.RelayMetrics
	logger    *zap.SugaredLogger
}

func NewSignalingRelay(directory ports.RoomDirectory, sender ports.PeerSender, metrics ports.RelayMetrics, logger *zap.SugaredLogger) ports.Relay {
	return &signalingRelay{
		directory: directory,
		sender:    sender,
		metrics:   metrics,
		logger:    logger,
	}
}

// Broadcast resolves the room's member set once and delivers the message to
// every member except the origin. The payload is never inspected or
// transformed. A member joining after the snapshot gets nothing; signaling is
// not queued for latecomers. Delivery failures are logged and swallowed so a
// dead peer cannot fail the originating handler.
func (r *signalingRelay) Broadcast(ctx context.Context, roomID domain.RoomID, origin domain.ConnectionID, message interface{}) int {
	members, err := r.directory.Members(ctx, roomID)
	if err != nil {
		r.logger.Warnw("failed to resolve room members for broadcast",
			"room_id", roomID,
			"error", err,
		)
		return 0
	}

	delivered := 0
	failed := 0
	for _, member := range members {
		if member == origin {
			continue
		}
		if err := r.sender.Send(member, message); err != nil {
			failed++
			r.logger.Warnw("failed to deliver message to peer",
				"room_id", roomID,
				"peer_id", member,
				"error", err,
			)
			continue
		}
		delivered++
	}

	if r.metrics != nil {
		r.metrics.RelayDelivered(delivered)
		r.metrics.RelayFailed(failed)
	}
	return delivered
}
