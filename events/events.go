// Package events broadcasts committed board mutations over redis pub/sub so
// the presentation layer can re-render from canonical state without polling.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"lotus-board/domain"
)

// EventType identifies what happened to the board.
type EventType string

const (
	TaskCreated      EventType = "task-created"
	TaskUpdated      EventType = "task-updated"
	TaskMoved        EventType = "task-moved"
	TaskDeleted      EventType = "task-deleted"
	ProposalApproved EventType = "proposal-approved"
	BoardReloaded    EventType = "board-reloaded"
)

// BoardEvent is the wire form of a committed mutation. Only confirmed state
// is broadcast; optimistic local applies are not.
type BoardEvent struct {
	Type      EventType    `json:"type"`
	TaskID    string       `json:"taskId,omitempty"`
	Task      *domain.Task `json:"task,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Publisher emits board events to a redis channel.
type Publisher struct {
	rc      *redis.Client
	channel string
	logger  *log.Logger
}

// NewPublisher creates a Publisher. The channel must be non-empty.
func NewPublisher(rc *redis.Client, channel string, logger *log.Logger) *Publisher {
	if channel == "" {
		panic("events.NewPublisher: empty channel")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Publisher{rc: rc, channel: channel, logger: logger}
}

// Emit publishes the event. The timestamp is stamped here so callers only
// describe what happened.
func (p *Publisher) Emit(ctx context.Context, ev BoardEvent) error {
	ev.Timestamp = time.Now().UnixNano()
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.rc.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.WithError(err).WithField("type", ev.Type).Warn("publish board event")
		return err
	}
	return nil
}

// Listen blocks and forwards raw event payloads published on this
// publisher's channel to broadcast until ctx is cancelled.
func (p *Publisher) Listen(ctx context.Context, broadcast func(data []byte)) {
	Subscribe(ctx, p.logger, p.rc, p.channel, broadcast)
}

// Subscribe listens on the board channel and hands each raw event payload to
// broadcast until ctx is cancelled. Malformed payloads are logged and
// skipped.
func Subscribe(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, broadcast func(data []byte)) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	sub := rc.Subscribe(ctx, channel)
	defer func() { _ = sub.Close() }()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				logger.Error("board event channel closed")
				return
			}
			var ev BoardEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.WithError(err).Error("unable to parse board event")
				continue
			}
			broadcast([]byte(msg.Payload))
		}
	}
}
