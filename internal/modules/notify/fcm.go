package notify

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/messaging"
)

// FCMChannel delivers push-medium messages. Destinations are FCM topics.
type FCMChannel struct {
	client *messaging.Client
}

func NewFCMChannel(client *messaging.Client) *FCMChannel {
	return &FCMChannel{client: client}
}

func (c *FCMChannel) Deliver(ctx context.Context, m Message) (string, error) {
	if m.Destination == "" {
		return "", deliveryErr(m.Medium, errors.New("empty topic"))
	}
	data := map[string]string{
		"type":    string(m.Template),
		"ride_id": string(m.RideID),
	}
	for k, v := range m.Vars {
		data[string(k)] = v
	}
	msg := &messaging.Message{
		Topic: m.Destination,
		Data:  data,
		Notification: &messaging.Notification{
			Title: "WeRide",
			Body:  m.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	id, err := c.client.Send(ctx, msg)
	if err != nil {
		return "", deliveryErr(m.Medium, err)
	}
	return id, nil
}
