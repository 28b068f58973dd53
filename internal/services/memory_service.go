// File: internal/services/memory_service.go
package services

import "github.com/iyunix/go-chat/internal/services/memory"

// MemoryService wires the pinecone index to an embedder. It satisfies both
// the retrieval side used by turns and the forget side used by chat deletion.
type MemoryService struct {
	*memory.Service
	index *memory.PineconeIndex
}

func NewMemoryService(embedder memory.Embedder, config *memory.Config, logger Logger) (*MemoryService, error) {
	if config == nil {
		return nil, memory.NewConfigError("memory config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, memory.NewConfigError(err.Error())
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}

	index, err := memory.NewPineconeIndex(config, logger)
	if err != nil {
		return nil, err
	}
	return &MemoryService{
		Service: memory.NewService(embedder, index, config, logger),
		index:   index,
	}, nil
}

func (s *MemoryService) Close() error {
	return s.index.Close()
}
