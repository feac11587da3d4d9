package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Notifier delivers an alert to one device
type Notifier interface {
	Notify(ctx context.Context, deviceToken, title, body string) error
}

// APNSOptions configures token-based APNs authentication
type APNSOptions struct {
	KeyFile    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// APNSNotifier sends alerts through Apple Push Notification service
type APNSNotifier struct {
	client *apns2.Client
	topic  string
}

// NewAPNSNotifier creates a notifier from a .p8 signing key
func NewAPNSNotifier(opts APNSOptions) (*APNSNotifier, error) {
	authKey, err := token.AuthKeyFromFile(opts.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   opts.KeyID,
		TeamID:  opts.TeamID,
	})
	if opts.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNSNotifier{client: client, topic: opts.Topic}, nil
}

// Notify pushes an alert with the default sound
func (n *APNSNotifier) Notify(ctx context.Context, deviceToken, title, body string) error {
	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       n.topic,
		Payload:     payload.NewPayload().AlertTitle(title).AlertBody(body).Sound("default"),
	}

	res, err := n.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}
	return nil
}

// PushService alerts users on their registered device
type PushService struct {
	users    *UserService
	notifier Notifier
}

// NewPushService creates a push service. A nil notifier disables pushes.
func NewPushService(users *UserService, notifier Notifier) *PushService {
	return &PushService{users: users, notifier: notifier}
}

// Enabled reports whether pushes are delivered at all
func (s *PushService) Enabled() bool {
	return s != nil && s.notifier != nil
}

// NotifyUser alerts userID if they registered a device. Failures are logged
// and never returned.
func (s *PushService) NotifyUser(ctx context.Context, userID, title, body string) {
	if !s.Enabled() {
		return
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load push recipient")
		return
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return
	}

	if err := s.notifier.Notify(ctx, *user.PushToken, title, body); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to send push notification")
		return
	}
	log.Debug().Str("user_id", userID).Msg("Push notification sent")
}
