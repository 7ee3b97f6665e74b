package queue

import (
	"context"
	"fmt"
	"log/slog"

	"brightwords/internal/progress"
)

// Producer publishes session-completed events. It implements
// progress.EventPublisher.
type Producer struct {
	conn *Connection
}

// NewProducer creates a producer over an established connection.
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishSessionCompleted announces a committed session to the summary queue.
func (p *Producer) PublishSessionCompleted(ctx context.Context, ev progress.SessionCompletedEvent) error {
	if err := p.conn.publishJSON(ctx, SessionQueueName, ev); err != nil {
		return fmt.Errorf("publish session completed: %w", err)
	}

	slog.Info("published session completed",
		"session_id", ev.SessionID,
		"learner_id", ev.LearnerID,
		"week_id", ev.WeekID,
	)
	return nil
}
