package service

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	odiff "github.com/r3labs/diff/v3"

	dbt "splitledger/db/db"
	"splitledger/libs/diff"
	"splitledger/mq/mq"
)

// LedgerService orchestrates the pure ledger math against the store and the
// event queue. All authorization is group-membership based: the acting user
// must belong to the group a call touches.
type LedgerService struct {
	store  dbt.LedgerDBWrapper
	queue  mq.LedgerMessageQueueWrapper
	differ *odiff.Differ

	// settleMu serializes payments per group so two concurrent payments
	// cannot both allocate against the same debts. The store re-checks under
	// row locks anyway; the mutex just keeps the common path conflict-free.
	settleMu   map[uuid.UUID]*sync.Mutex
	settleMuMu sync.Mutex
}

// NewLedgerService creates a LedgerService on top of a store and a queue.
func NewLedgerService(store dbt.LedgerDBWrapper, queue mq.LedgerMessageQueueWrapper) *LedgerService {
	return &LedgerService{
		store:    store,
		queue:    queue,
		differ:   diff.GetCustomDiffer(),
		settleMu: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *LedgerService) groupMutex(groupID uuid.UUID) *sync.Mutex {
	s.settleMuMu.Lock()
	defer s.settleMuMu.Unlock()

	mu, ok := s.settleMu[groupID]
	if !ok {
		mu = &sync.Mutex{}
		s.settleMu[groupID] = mu
	}
	return mu
}

// publish failures never fail the ledger operation that triggered them; the
// write is already durable by the time events go out.
func logPublishError(kind string, err error) {
	if err != nil {
		slog.Error("failed to publish ledger event", "kind", kind, "error", err)
	}
}

func isMember(group *dbt.Group, userID string) bool {
	for _, id := range group.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
