package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"lexvoice-server/pkg/metrics"
)

// TranscriptMessage is one transcript line published to the queue.
type TranscriptMessage struct {
	CallSID   string    `json:"call_sid"`
	RoleLabel string    `json:"role_label"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// AMQPConfig holds AMQP client configuration
type AMQPConfig struct {
	URL       string
	QueueName string
}

// AMQPClient handles the AMQP connection and transcript publishing
type AMQPClient struct {
	logger    *logrus.Logger
	config    AMQPConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
}

// NewAMQPClient creates a new AMQP client
func NewAMQPClient(logger *logrus.Logger, config AMQPConfig) *AMQPClient {
	return &AMQPClient{
		logger: logger,
		config: config,
	}
}

// Connect establishes a connection to the AMQP server and declares the
// transcript queue.
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}

	if c.config.URL == "" || c.config.QueueName == "" {
		c.logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, transcript publishing disabled")
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connChan := make(chan struct {
		conn *amqp.Connection
		err  error
	}, 1)

	go func() {
		conn, err := amqp.Dial(c.config.URL)
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
		case connChan <- struct {
			conn *amqp.Connection
			err  error
		}{conn, err}:
		}
	}()

	var conn *amqp.Connection
	var err error
	select {
	case result := <-connChan:
		conn = result.conn
		err = result.err
	case <-ctx.Done():
		return fmt.Errorf("connection to AMQP server timed out after 5 seconds")
	}
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		c.config.QueueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	c.connected = true
	if metrics.AMQPConnectionStatus != nil {
		metrics.AMQPConnectionStatus.Set(1)
	}

	// Mark the client disconnected when the broker drops us.
	closeChan := make(chan *amqp.Error, 1)
	conn.NotifyClose(closeChan)
	go func() {
		amqpErr := <-closeChan
		c.connMutex.Lock()
		c.connected = false
		c.connMutex.Unlock()
		if metrics.AMQPConnectionStatus != nil {
			metrics.AMQPConnectionStatus.Set(0)
		}
		if amqpErr != nil {
			c.logger.WithField("reason", amqpErr.Reason).Warn("AMQP connection closed")
		}
	}()

	c.logger.WithField("queue", c.config.QueueName).Info("Connected to AMQP server")
	return nil
}

// IsConnected returns whether the client has a live connection
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// PublishTranscriptLine publishes one transcript line to the queue
func (c *AMQPClient) PublishTranscriptLine(callSID, roleLabel, text string) error {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	if !c.connected {
		return fmt.Errorf("AMQP client not connected")
	}

	body, err := json.Marshal(TranscriptMessage{
		CallSID:   callSID,
		RoleLabel: roleLabel,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transcript message: %w", err)
	}

	err = c.channel.Publish(
		"",                 // default exchange
		c.config.QueueName, // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish transcript message: %w", err)
	}

	if metrics.AMQPPublishedMessages != nil {
		metrics.AMQPPublishedMessages.Inc()
	}
	return nil
}

// Disconnect closes the channel and connection
func (c *AMQPClient) Disconnect() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	if metrics.AMQPConnectionStatus != nil {
		metrics.AMQPConnectionStatus.Set(0)
	}
	c.logger.Info("Disconnected from AMQP server")
}
