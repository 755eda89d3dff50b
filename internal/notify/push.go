package notify

import (
	"context"
	"fmt"

	"github.com/njrgourav11/service-buddy-sub000/internal/metrics"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// MessageSender is the part of the FCM client the push channel uses.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushChannel sends notifications through Firebase Cloud Messaging.
type PushChannel struct {
	client MessageSender
}

func NewPushChannel(client MessageSender) *PushChannel {
	return &PushChannel{client: client}
}

// NewFirebasePushChannel builds a PushChannel backed by the app's
// messaging client.
func NewFirebasePushChannel(ctx context.Context, app *firebase.App) (*PushChannel, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: messaging client: %w", err)
	}
	return NewPushChannel(client), nil
}

func (p *PushChannel) Send(ctx context.Context, token string, n *models.Notification) error {
	data := map[string]string{
		"notification_id": n.ID,
		"severity":        string(n.Severity),
	}
	if n.Link != "" {
		data["link"] = n.Link
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	if _, err := p.client.Send(ctx, msg); err != nil {
		metrics.IncNotification("push", "error")
		return fmt.Errorf("send push: %w", err)
	}
	metrics.IncNotification("push", "sent")
	return nil
}
