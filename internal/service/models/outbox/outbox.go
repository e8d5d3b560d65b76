package outbox

import (
	"time"
)

// Message is an order lifecycle event waiting to be published to RabbitMQ.
// Rows are written in the same transaction as the business mutation and
// drained by the outbox worker.
type Message struct {
	ID           int64
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}
