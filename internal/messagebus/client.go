package messagebus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/yard/config"
	"example.com/backstage/services/yard/internal/metrics"
	"example.com/backstage/services/yard/internal/retry"
)

// Client defines the interface for message bus operations
type Client interface {
	PublishMessage(ctx context.Context, message interface{}, queueName string) error
	ReceiveMessages(ctx context.Context, queueName string, count int) ([]Message, error)
	Close(ctx context.Context) error
}

// Message represents a message from the message bus
type Message interface {
	GetID() (string, error)
	GetMessage() (map[string]interface{}, error)
	Decode(into interface{}) error
	Complete(ctx context.Context) error
	Reject(ctx context.Context) error
}

// AzureServiceBusClient implements Client using Azure Service Bus
type AzureServiceBusClient struct {
	client *azservicebus.Client
	prefix string

	mu        sync.Mutex
	receivers map[string]*azservicebus.Receiver
}

// serviceBusMessage implements Message
type serviceBusMessage struct {
	message  *azservicebus.ReceivedMessage
	receiver *azservicebus.Receiver
	content  map[string]interface{}
}

// NewClient creates a new message bus client
func NewClient(cfg *config.MessageBusConfig) (Client, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service bus client: %w", err)
	}

	return &AzureServiceBusClient{
		client:    client,
		prefix:    cfg.Prefix,
		receivers: make(map[string]*azservicebus.Receiver),
	}, nil
}

// QueueName returns the full queue name with prefix
func QueueName(prefix, queueName string) string {
	if prefix == "" {
		return queueName
	}
	return fmt.Sprintf("%s-%s", prefix, queueName)
}

// PublishMessage publishes a message to a queue
func (c *AzureServiceBusClient) PublishMessage(ctx context.Context, message interface{}, queueName string) error {
	startTime := time.Now()
	collector := metrics.GetMetricsCollector()

	sender, err := c.client.NewSender(QueueName(c.prefix, queueName), nil)
	if err != nil {
		collector.RecordMessageBusOperation(metrics.MessageBusOperationSend, false, time.Since(startTime))
		return fmt.Errorf("failed to create sender for queue %s: %w", queueName, err)
	}
	defer sender.Close(ctx)

	messageBytes, err := json.Marshal(message)
	if err != nil {
		collector.RecordMessageBusOperation(metrics.MessageBusOperationSend, false, time.Since(startTime))
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	contentType := "application/json"
	sbMessage := &azservicebus.Message{
		Body:        messageBytes,
		ContentType: &contentType,
	}

	if err := sender.SendMessage(ctx, sbMessage, nil); err != nil {
		collector.RecordMessageBusOperation(metrics.MessageBusOperationSend, false, time.Since(startTime))
		return fmt.Errorf("failed to send message: %w", err)
	}

	collector.RecordMessageBusOperation(metrics.MessageBusOperationSend, true, time.Since(startTime))
	return nil
}

// ReceiveMessages receives up to count messages from a queue. The receiver
// for each queue is kept open across calls because received messages settle
// through it.
func (c *AzureServiceBusClient) ReceiveMessages(ctx context.Context, queueName string, count int) ([]Message, error) {
	startTime := time.Now()
	collector := metrics.GetMetricsCollector()

	receiver, err := c.receiverFor(queueName)
	if err != nil {
		collector.RecordMessageBusOperation(metrics.MessageBusOperationReceive, false, time.Since(startTime))
		return nil, err
	}

	receiveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sbMessages, err := receiver.ReceiveMessages(receiveCtx, count, nil)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			// nothing arrived within the receive window
			collector.RecordMessageBusOperation(metrics.MessageBusOperationReceive, true, time.Since(startTime))
			return nil, nil
		}
		c.dropReceiver(ctx, QueueName(c.prefix, queueName), receiver)
		collector.RecordMessageBusOperation(metrics.MessageBusOperationReceive, false, time.Since(startTime))
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	messages := make([]Message, len(sbMessages))
	for i, sbMessage := range sbMessages {
		messages[i] = &serviceBusMessage{
			message:  sbMessage,
			receiver: receiver,
		}
	}

	collector.RecordMessageBusOperation(metrics.MessageBusOperationReceive, true, time.Since(startTime))
	return messages, nil
}

// receiverFor returns the open peek-lock receiver for a queue, creating it on
// first use
func (c *AzureServiceBusClient) receiverFor(queueName string) (*azservicebus.Receiver, error) {
	name := QueueName(c.prefix, queueName)

	c.mu.Lock()
	defer c.mu.Unlock()

	if receiver, ok := c.receivers[name]; ok {
		return receiver, nil
	}

	receiver, err := c.client.NewReceiverForQueue(name, &azservicebus.ReceiverOptions{
		ReceiveMode: azservicebus.ReceiveModePeekLock,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create receiver for queue %s: %w", queueName, err)
	}
	c.receivers[name] = receiver
	return receiver, nil
}

// dropReceiver closes a failed receiver so the next receive opens a fresh one
func (c *AzureServiceBusClient) dropReceiver(ctx context.Context, name string, receiver *azservicebus.Receiver) {
	c.mu.Lock()
	if c.receivers[name] == receiver {
		delete(c.receivers, name)
	}
	c.mu.Unlock()

	if err := receiver.Close(ctx); err != nil {
		logrus.WithError(err).WithField("queue", name).Warn("Failed to close message bus receiver")
	}
}

// Close closes every open receiver and then the client
func (c *AzureServiceBusClient) Close(ctx context.Context) error {
	c.mu.Lock()
	receivers := c.receivers
	c.receivers = make(map[string]*azservicebus.Receiver)
	c.mu.Unlock()

	for name, receiver := range receivers {
		if err := receiver.Close(ctx); err != nil {
			logrus.WithError(err).WithField("queue", name).Warn("Failed to close message bus receiver")
		}
	}
	return c.client.Close(ctx)
}

// GetID gets the ID of the message
func (m *serviceBusMessage) GetID() (string, error) {
	if m.message.MessageID != "" {
		return m.message.MessageID, nil
	}
	content, err := m.GetMessage()
	if err != nil {
		return "", err
	}
	return idFrom(content)
}

func idFrom(content map[string]interface{}) (string, error) {
	for _, field := range []string{"id", "event_id", "gate_pass_id"} {
		if id, ok := content[field].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("message does not have an ID field")
}

// GetMessage gets the content of the message
func (m *serviceBusMessage) GetMessage() (map[string]interface{}, error) {
	if m.content != nil {
		return m.content, nil
	}

	var content map[string]interface{}
	if err := json.Unmarshal(m.message.Body, &content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	m.content = content
	return content, nil
}

// Decode unmarshals the message body into the given value
func (m *serviceBusMessage) Decode(into interface{}) error {
	if err := json.Unmarshal(m.message.Body, into); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}

// Complete marks the message as complete
func (m *serviceBusMessage) Complete(ctx context.Context) error {
	startTime := time.Now()
	collector := metrics.GetMetricsCollector()

	if err := m.receiver.CompleteMessage(ctx, m.message, nil); err != nil {
		collector.RecordMessageBusOperation(metrics.MessageBusOperationComplete, false, time.Since(startTime))
		return fmt.Errorf("failed to complete message: %w", err)
	}

	collector.RecordMessageBusOperation(metrics.MessageBusOperationComplete, true, time.Since(startTime))
	return nil
}

// Reject rejects the message
func (m *serviceBusMessage) Reject(ctx context.Context) error {
	startTime := time.Now()
	collector := metrics.GetMetricsCollector()

	if err := m.receiver.AbandonMessage(ctx, m.message, nil); err != nil {
		collector.RecordMessageBusOperation(metrics.MessageBusOperationReject, false, time.Since(startTime))
		return fmt.Errorf("failed to abandon message: %w", err)
	}

	collector.RecordMessageBusOperation(metrics.MessageBusOperationReject, true, time.Since(startTime))
	return nil
}

// IsDisconnectionError checks if an error is a disconnection error
func IsDisconnectionError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "amqp: link detached") ||
		strings.Contains(errMsg, "awaiting send: context deadline exceeded")
}

// RetryWithBackoff retries an operation with exponential backoff while it
// fails with a disconnection error
func RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	policy := retry.Policy{
		MaxAttempts: maxRetries,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
	}
	return retry.WithBackoff(ctx, policy, IsDisconnectionError, func(int) error {
		return fn()
	})
}
