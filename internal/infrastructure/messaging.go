package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"example.com/backstage/services/sitemodel/config"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
)

// Messaging publishes JSON messages to Service Bus queues or topics. A sender
// is opened lazily per destination.
type Messaging struct {
	client  *azservicebus.Client
	mu      sync.Mutex
	senders map[string]*azservicebus.Sender
}

func NewMessaging(cfg config.ServiceBusConfig) (*Messaging, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("service bus connection string is required")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service bus client: %w", err)
	}

	return &Messaging{
		client:  client,
		senders: make(map[string]*azservicebus.Sender),
	}, nil
}

func (m *Messaging) sender(topic string) (*azservicebus.Sender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.senders[topic]; ok {
		return s, nil
	}
	s, err := m.client.NewSender(topic, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender for %s: %w", topic, err)
	}
	m.senders[topic] = s
	return s, nil
}

// Publish sends message, JSON encoded, to the queue or topic named topic.
func (m *Messaging) Publish(ctx context.Context, topic string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	sender, err := m.sender(topic)
	if err != nil {
		return err
	}

	messageID := uuid.NewString()
	contentType := "application/json"
	msg := &azservicebus.Message{
		Body:        data,
		MessageID:   &messageID,
		ContentType: &contentType,
		ApplicationProperties: map[string]interface{}{
			"topic":     topic,
			"timestamp": time.Now().Unix(),
		},
	}

	return sender.SendMessage(ctx, msg, nil)
}

func (m *Messaging) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for topic, s := range m.senders {
		if err := s.Close(context.Background()); err != nil {
			return fmt.Errorf("failed to close sender for %s: %w", topic, err)
		}
	}

	if m.client != nil {
		return m.client.Close(context.Background())
	}

	return nil
}
