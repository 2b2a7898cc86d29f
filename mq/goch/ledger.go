package goch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"splitledger/mq/mq"
)

const subscriberSendTimeout = 100 * time.Millisecond

type subscriberEntry[M any] struct {
	topic uuid.UUID
	ch    chan M

	// sendMu serializes sends against close so DeSubscribe cannot close the
	// channel mid-send.
	sendMu sync.Mutex
	closed bool
}

// trySend delivers msg unless the entry is closed. Returns false when the
// consumer stayed blocked past the timeout.
func (s *subscriberEntry[M]) trySend(msg M, timeout time.Duration) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- msg:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *subscriberEntry[M]) closeOnce() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// fanOutQueueCore is the shared machinery behind the channel-backed queues:
// a publish channel, a fan-out goroutine, and a set of per-topic subscribers.
// A subscriber that stays blocked past subscriberSendTimeout is dropped so
// one slow consumer cannot stall the rest.
type fanOutQueueCore[M mq.TopicProvider] struct {
	publishChan chan M
	subscribers map[uuid.UUID]*subscriberEntry[M]
	mu          sync.RWMutex
	quit        chan struct{}
	bufferSize  int
}

func newFanOutQueueCore[M mq.TopicProvider](bufferSize int) *fanOutQueueCore[M] {
	core := &fanOutQueueCore[M]{
		publishChan: make(chan M, bufferSize),
		subscribers: make(map[uuid.UUID]*subscriberEntry[M]),
		quit:        make(chan struct{}),
		bufferSize:  bufferSize,
	}
	go core.fanOutRoutine()
	return core
}

func (core *fanOutQueueCore[M]) fanOutRoutine() {
	defer close(core.quit)

	for msg := range core.publishChan {
		topic := msg.GetTopic()

		core.mu.RLock()
		targets := make(map[uuid.UUID]*subscriberEntry[M])
		for id, sub := range core.subscribers {
			if sub.topic == topic {
				targets[id] = sub
			}
		}
		core.mu.RUnlock()

		var blocked []uuid.UUID
		for id, sub := range targets {
			if !sub.trySend(msg, subscriberSendTimeout) {
				blocked = append(blocked, id)
			}
		}

		if len(blocked) > 0 {
			core.mu.Lock()
			for _, id := range blocked {
				if sub, ok := core.subscribers[id]; ok {
					delete(core.subscribers, id)
					sub.closeOnce()
				}
			}
			core.mu.Unlock()
		}
	}
}

// Publish enqueues a message without blocking. A full publish channel means
// the fan-out routine cannot keep up and the message is rejected.
func (core *fanOutQueueCore[M]) Publish(msg M) error {
	select {
	case core.publishChan <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe registers an unbuffered consumer channel for one topic.
func (core *fanOutQueueCore[M]) Subscribe(topic uuid.UUID) (uuid.UUID, <-chan M, error) {
	id := uuid.New()
	ch := make(chan M)

	core.mu.Lock()
	core.subscribers[id] = &subscriberEntry[M]{topic: topic, ch: ch}
	core.mu.Unlock()

	return id, ch, nil
}

// DeSubscribe removes a subscriber by its ID and closes its channel.
func (core *fanOutQueueCore[M]) DeSubscribe(id uuid.UUID) error {
	core.mu.Lock()
	defer core.mu.Unlock()

	sub, ok := core.subscribers[id]
	if !ok {
		return fmt.Errorf("subscriber with ID %s not found", id)
	}
	delete(core.subscribers, id)
	sub.closeOnce()
	return nil
}

// Stop shuts the queue down: no further publishes are accepted and every
// remaining subscriber channel is closed once pending messages are fanned out.
func (core *fanOutQueueCore[M]) Stop() {
	close(core.publishChan)
	<-core.quit

	core.mu.Lock()
	defer core.mu.Unlock()
	for id, sub := range core.subscribers {
		delete(core.subscribers, id)
		sub.closeOnce()
	}
}

// ChannelTransactionMessageQueue implements mq.TransactionMessageQueue using Go channels.
type ChannelTransactionMessageQueue struct {
	action mq.Action
	core   *fanOutQueueCore[mq.TransactionMessage]
}

// NewChannelTransactionMessageQueue creates a new instance of ChannelTransactionMessageQueue.
// bufferSize determines the capacity of the publish channel; 0 means unbuffered.
func NewChannelTransactionMessageQueue(action mq.Action, bufferSize int) *ChannelTransactionMessageQueue {
	return &ChannelTransactionMessageQueue{
		action: action,
		core:   newFanOutQueueCore[mq.TransactionMessage](bufferSize),
	}
}

func (q *ChannelTransactionMessageQueue) GetAction() mq.Action {
	return q.action
}

func (q *ChannelTransactionMessageQueue) Publish(msg mq.TransactionMessage) error {
	return q.core.Publish(msg)
}

func (q *ChannelTransactionMessageQueue) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan mq.TransactionMessage, error) {
	return q.core.Subscribe(groupID)
}

func (q *ChannelTransactionMessageQueue) DeSubscribe(id uuid.UUID) error {
	return q.core.DeSubscribe(id)
}

// ChannelSettlementMessageQueue implements mq.SettlementMessageQueue using Go channels.
type ChannelSettlementMessageQueue struct {
	action mq.Action
	core   *fanOutQueueCore[mq.SettlementMessage]
}

// NewChannelSettlementMessageQueue creates a new instance of ChannelSettlementMessageQueue.
func NewChannelSettlementMessageQueue(action mq.Action, bufferSize int) *ChannelSettlementMessageQueue {
	return &ChannelSettlementMessageQueue{
		action: action,
		core:   newFanOutQueueCore[mq.SettlementMessage](bufferSize),
	}
}

func (q *ChannelSettlementMessageQueue) GetAction() mq.Action {
	return q.action
}

func (q *ChannelSettlementMessageQueue) Publish(msg mq.SettlementMessage) error {
	return q.core.Publish(msg)
}

func (q *ChannelSettlementMessageQueue) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan mq.SettlementMessage, error) {
	return q.core.Subscribe(groupID)
}

func (q *ChannelSettlementMessageQueue) DeSubscribe(id uuid.UUID) error {
	return q.core.DeSubscribe(id)
}

// GoChanLedgerMessageQueueWrapper implements mq.LedgerMessageQueueWrapper
// with in-process channels. Used in dev mode and by the service tests.
type GoChanLedgerMessageQueueWrapper struct {
	TransactionMQArray [mq.ActionCnt]mq.TransactionMessageQueue
	SettlementMQArray  [mq.ActionCnt]mq.SettlementMessageQueue
}

func (wrapper *GoChanLedgerMessageQueueWrapper) GetTransactionMessageQueue(action mq.Action) mq.TransactionMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.TransactionMQArray[action]
}

func (wrapper *GoChanLedgerMessageQueueWrapper) GetSettlementMessageQueue(action mq.Action) mq.SettlementMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.SettlementMQArray[action]
}

// NewGoChanLedgerMessageQueueWrapper creates a new instance of GoChanLedgerMessageQueueWrapper.
func NewGoChanLedgerMessageQueueWrapper() mq.LedgerMessageQueueWrapper {
	wrapper := GoChanLedgerMessageQueueWrapper{}
	// transactions are announced on expense create, update and delete
	wrapper.TransactionMQArray[mq.ActionCreate] = NewChannelTransactionMessageQueue(mq.ActionCreate, 16)
	wrapper.TransactionMQArray[mq.ActionUpdate] = NewChannelTransactionMessageQueue(mq.ActionUpdate, 16)
	wrapper.TransactionMQArray[mq.ActionDelete] = NewChannelTransactionMessageQueue(mq.ActionDelete, 16)
	// settlements are only ever recorded
	wrapper.SettlementMQArray[mq.ActionCreate] = NewChannelSettlementMessageQueue(mq.ActionCreate, 16)

	return &wrapper
}

// --- Error Definitions ---
type QueueError string

func (e QueueError) Error() string {
	return string(e)
}

const (
	ErrQueueFull QueueError = "message queue is full"
)
