package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"

	"splitledger/mq/mq"
)

const (
	exchangeName = "ledger_events_exchange" // All ledger events go through this exchange
)

// Routing keys for the supported action and message type combinations
const (
	transactionCreateRoutingKey = "transaction.create"
	transactionUpdateRoutingKey = "transaction.update"
	transactionDeleteRoutingKey = "transaction.delete"
	settlementCreateRoutingKey  = "settlement.create"
)

func getRoutingKey(action mq.Action, msgType string) string {
	switch msgType {
	case "transaction":
		switch action {
		case mq.ActionCreate:
			return transactionCreateRoutingKey
		case mq.ActionUpdate:
			return transactionUpdateRoutingKey
		case mq.ActionDelete:
			return transactionDeleteRoutingKey
		}
	case "settlement":
		if action == mq.ActionCreate {
			return settlementCreateRoutingKey
		}
	}
	return ""
}

// publishWithRetry publishes a JSON body with exponential backoff. Broker
// hiccups during a channel re-open are the common transient failure here.
func publishWithRetry(ch *amqp091.Channel, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := ch.PublishWithContext(ctx,
			exchangeName, // exchange
			routingKey,   // routing key
			false,        // mandatory
			false,        // immediate
			amqp091.Publishing{
				ContentType: "application/json",
				Body:        body,
			})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// rabbitQueueCore is the shared machinery behind both rabbit-backed queues.
// Consumers are fanned out in-process; group filtering happens client-side
// because every consumer of an action shares one broker queue.
type rabbitQueueCore[M mq.TopicProvider] struct {
	channel    *amqp091.Channel
	queueName  string
	routingKey string
	mu         sync.RWMutex
	consumers  map[uuid.UUID]chan M
}

func newRabbitQueueCore[M mq.TopicProvider](conn *amqp091.Connection, queueName, routingKey string) (*rabbitQueueCore[M], error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := DeclareQueueAndExchange(ch, queueName, exchangeName, routingKey); err != nil {
		ch.Close()
		return nil, err
	}

	return &rabbitQueueCore[M]{
		channel:    ch,
		queueName:  queueName,
		routingKey: routingKey,
		consumers:  make(map[uuid.UUID]chan M),
	}, nil
}

func (q *rabbitQueueCore[M]) publish(msg M) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := publishWithRetry(q.channel, q.routingKey, body); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (q *rabbitQueueCore[M]) subscribe(groupID uuid.UUID) (uuid.UUID, <-chan M, error) {
	msgs, err := q.channel.Consume(
		q.queueName, // queue
		"",          // consumer
		true,        // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	subscriberID := uuid.New()
	outputChan := make(chan M)

	q.mu.Lock()
	q.consumers[subscriberID] = outputChan
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			if ch, ok := q.consumers[subscriberID]; ok {
				close(ch)
				delete(q.consumers, subscriberID)
			}
			q.mu.Unlock()
		}()

		for d := range msgs {
			var msg M
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				log.Printf("Failed to unmarshal message on %s: %v", q.queueName, err)
				continue
			}
			// Drop messages for other groups; uuid.Nil subscribes to all.
			if groupID != uuid.Nil && msg.GetTopic() != groupID {
				continue
			}

			q.mu.RLock()
			ch, ok := q.consumers[subscriberID]
			q.mu.RUnlock()
			if !ok {
				// Consumer unsubscribed while the message was in flight
				return
			}
			select {
			case ch <- msg:
			case <-time.After(1 * time.Second):
				log.Printf("Timeout sending message to consumer %s on %s. Skipping.", subscriberID, q.queueName)
			}
		}
	}()

	return subscriberID, outputChan, nil
}

func (q *rabbitQueueCore[M]) deSubscribe(subscriberID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ch, ok := q.consumers[subscriberID]; ok {
		delete(q.consumers, subscriberID)
		close(ch)
		return nil
	}
	return fmt.Errorf("consumer with ID %s not found for queue %s", subscriberID, q.queueName)
}

// rabbitTransactionMessageQueue implements mq.TransactionMessageQueue for RabbitMQ.
type rabbitTransactionMessageQueue struct {
	action mq.Action
	core   *rabbitQueueCore[mq.TransactionMessage]
}

// NewRabbitTransactionMessageQueue creates a new RabbitMQ message queue for TransactionMessages.
func NewRabbitTransactionMessageQueue(action mq.Action, conn *amqp091.Connection) (mq.TransactionMessageQueue, error) {
	core, err := newRabbitQueueCore[mq.TransactionMessage](
		conn,
		fmt.Sprintf("ledger_transaction_%s_queue", action),
		getRoutingKey(action, "transaction"),
	)
	if err != nil {
		return nil, err
	}
	return &rabbitTransactionMessageQueue{action: action, core: core}, nil
}

func (q *rabbitTransactionMessageQueue) GetAction() mq.Action {
	return q.action
}

func (q *rabbitTransactionMessageQueue) Publish(msg mq.TransactionMessage) error {
	return q.core.publish(msg)
}

func (q *rabbitTransactionMessageQueue) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan mq.TransactionMessage, error) {
	return q.core.subscribe(groupID)
}

func (q *rabbitTransactionMessageQueue) DeSubscribe(id uuid.UUID) error {
	return q.core.deSubscribe(id)
}

// rabbitSettlementMessageQueue implements mq.SettlementMessageQueue for RabbitMQ.
type rabbitSettlementMessageQueue struct {
	action mq.Action
	core   *rabbitQueueCore[mq.SettlementMessage]
}

// NewRabbitSettlementMessageQueue creates a new RabbitMQ message queue for SettlementMessages.
func NewRabbitSettlementMessageQueue(action mq.Action, conn *amqp091.Connection) (mq.SettlementMessageQueue, error) {
	core, err := newRabbitQueueCore[mq.SettlementMessage](
		conn,
		fmt.Sprintf("ledger_settlement_%s_queue", action),
		getRoutingKey(action, "settlement"),
	)
	if err != nil {
		return nil, err
	}
	return &rabbitSettlementMessageQueue{action: action, core: core}, nil
}

func (q *rabbitSettlementMessageQueue) GetAction() mq.Action {
	return q.action
}

func (q *rabbitSettlementMessageQueue) Publish(msg mq.SettlementMessage) error {
	return q.core.publish(msg)
}

func (q *rabbitSettlementMessageQueue) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan mq.SettlementMessage, error) {
	return q.core.subscribe(groupID)
}

func (q *rabbitSettlementMessageQueue) DeSubscribe(id uuid.UUID) error {
	return q.core.deSubscribe(id)
}

// rabbitLedgerMessageQueueWrapper implements mq.LedgerMessageQueueWrapper for RabbitMQ.
type rabbitLedgerMessageQueueWrapper struct {
	TransactionMQArray [mq.ActionCnt]mq.TransactionMessageQueue
	SettlementMQArray  [mq.ActionCnt]mq.SettlementMessageQueue
	conn               *amqp091.Connection
}

// NewRabbitLedgerMessageQueueWrapper creates a new instance of rabbitLedgerMessageQueueWrapper.
func NewRabbitLedgerMessageQueueWrapper(conn *amqp091.Connection) (mq.LedgerMessageQueueWrapper, error) {
	wrapper := &rabbitLedgerMessageQueueWrapper{
		conn: conn,
	}

	var err error

	// transactions are announced on expense create, update and delete
	for _, action := range []mq.Action{mq.ActionCreate, mq.ActionUpdate, mq.ActionDelete} {
		wrapper.TransactionMQArray[action], err = NewRabbitTransactionMessageQueue(action, conn)
		if err != nil {
			return nil, fmt.Errorf("failed to create transaction %s mq: %w", action, err)
		}
	}

	// settlements are only ever recorded
	wrapper.SettlementMQArray[mq.ActionCreate], err = NewRabbitSettlementMessageQueue(mq.ActionCreate, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create settlement create mq: %w", err)
	}

	return wrapper, nil
}

func (wrapper *rabbitLedgerMessageQueueWrapper) GetTransactionMessageQueue(action mq.Action) mq.TransactionMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.TransactionMQArray[action]
}

func (wrapper *rabbitLedgerMessageQueueWrapper) GetSettlementMessageQueue(action mq.Action) mq.SettlementMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.SettlementMQArray[action]
}

// Close closes all channels and the RabbitMQ connection.
func (wrapper *rabbitLedgerMessageQueueWrapper) Close() {
	for _, q := range wrapper.TransactionMQArray {
		if rmq, ok := q.(*rabbitTransactionMessageQueue); ok && rmq.core.channel != nil {
			rmq.core.channel.Close()
		}
	}
	for _, q := range wrapper.SettlementMQArray {
		if rmq, ok := q.(*rabbitSettlementMessageQueue); ok && rmq.core.channel != nil {
			rmq.core.channel.Close()
		}
	}
	if wrapper.conn != nil {
		wrapper.conn.Close()
	}
}
