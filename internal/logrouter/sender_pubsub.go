package logrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
)

// PubSubSender publishes routed messages to Pub/Sub. Each destination
// channel maps to a topic ID; the chat-facing relay subscribes and posts
// into the actual platform channel.
type PubSubSender struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubSender wraps an existing Pub/Sub client.
func NewPubSubSender(client *pubsub.Client) (*PubSubSender, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	return &PubSubSender{
		client: client,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

type wireMessage struct {
	Destination    string    `json:"destination"`
	Kind           string    `json:"kind"`
	Text           string    `json:"text"`
	AttachmentURIs []string  `json:"attachment_uris,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}

// Send marshals the message to JSON and publishes it to the destination's
// topic. Publish results are awaited so delivery failures surface to the
// router instead of being dropped by the async batcher.
func (s *PubSubSender) Send(ctx context.Context, destination string, msg Message) error {
	data, err := json.Marshal(wireMessage{
		Destination:    destination,
		Kind:           string(msg.Kind),
		Text:           msg.Text,
		AttachmentURIs: msg.AttachmentURIs,
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	result := s.topic(destination).Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":        string(msg.Kind),
			"destination": destination,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close stops all topic publishers.
func (s *PubSubSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.topics {
		t.Stop()
	}
}

func (s *PubSubSender) topic(destination string) *pubsub.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[destination]
	if !ok {
		t = s.client.Topic(destination)
		s.topics[destination] = t
	}
	return t
}
