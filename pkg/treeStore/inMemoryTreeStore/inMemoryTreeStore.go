package inMemoryTreeStore

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/treeStore"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// InMemoryTreeStore keeps tree blobs in process memory
type InMemoryTreeStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	logger *zap.Logger
}

func NewInMemoryTreeStore(logger *zap.Logger) *InMemoryTreeStore {
	return &InMemoryTreeStore{
		blobs:  make(map[string][]byte),
		logger: logger,
	}
}

func (s *InMemoryTreeStore) Put(ctx context.Context, data []byte) (string, error) {
	id, err := treeStore.ContentID(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		s.blobs[id] = append([]byte(nil), data...)
		s.logger.Sugar().Debugw("Stored tree blob", "contentId", id, "size", len(data))
	}
	return id, nil
}

func (s *InMemoryTreeStore) Get(ctx context.Context, contentId string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[contentId]
	if !ok {
		return nil, types.NewNotFoundError("tree content %s not found", contentId)
	}
	return append([]byte(nil), data...), nil
}
