package mq

import "github.com/google/uuid"

// TopicProvider is anything that can name the topic it belongs to. Messages
// are routed by group ID.
type TopicProvider interface {
	GetTopic() uuid.UUID
}

type LedgerMessageQueueWrapper interface {
	GetTransactionMessageQueue(action Action) TransactionMessageQueue
	GetSettlementMessageQueue(action Action) SettlementMessageQueue
}

type TransactionMessageQueue interface {
	GetAction() Action
	Publish(msg TransactionMessage) error
	Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan TransactionMessage, error)
	DeSubscribe(id uuid.UUID) error
}

type SettlementMessageQueue interface {
	GetAction() Action
	Publish(msg SettlementMessage) error
	Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan SettlementMessage, error)
	DeSubscribe(id uuid.UUID) error
}
