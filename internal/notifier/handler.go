package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jtiemann/activity-tracker/internal/events"
)

// NotificationHandler turns achievement.awarded events into notification_log
// rows for the delivery pipeline (email templating lives elsewhere).
type NotificationHandler struct {
	pool *pgxpool.Pool
}

// NewNotificationHandler constructs a handler backed by the provided pool.
func NewNotificationHandler(pool *pgxpool.Pool) *NotificationHandler {
	return &NotificationHandler{pool: pool}
}

// Handle stores a notification row for each awarded achievement. Rows are keyed
// by the payload event ID, so redelivered messages insert at most once.
func (h *NotificationHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != "achievement.awarded" {
		return nil
	}

	var award events.AchievementAwarded
	if err := json.Unmarshal(msg.Payload, &award); err != nil {
		return fmt.Errorf("decode achievement payload: %w", err)
	}
	if award.EventID == "" {
		award.EventID = uuid.NewString()
	}

	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx,
		`INSERT INTO notification_log (event_id, user_id, kind, subject, body, created_at)
         VALUES ($1,$2,$3,$4,$5,$6)
         ON CONFLICT (event_id) DO NOTHING`,
		award.EventID,
		award.UserID,
		"achievement",
		"New achievement earned",
		award.CustomMessage,
		award.EarnedAt,
	)
	return err
}
