package deadletter

import (
	"time"

	"track-enricher/internal/domain/entity"
)

// MessageDTO is the wire form of a dead-letter message.
type MessageDTO struct {
	ID             string                   `json:"id"`
	Request        entity.EnrichmentRequest `json:"request"`
	Classification entity.ErrorClass        `json:"classification"`
	Provider       string                   `json:"provider,omitempty"`
	Field          string                   `json:"field,omitempty"`
	Error          string                   `json:"error"`
	Attempts       []entity.Attempt         `json:"attempts"`
	Status         entity.MessageStatus     `json:"status"`
	ReplayCount    int                      `json:"replay_count"`
	EnqueuedAt     time.Time                `json:"enqueued_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

func toDTO(m *entity.DeadLetterMessage) MessageDTO {
	attempts := m.Attempts
	if attempts == nil {
		attempts = []entity.Attempt{}
	}
	return MessageDTO{
		ID:             m.ID,
		Request:        m.Request,
		Classification: m.Class,
		Provider:       m.Provider,
		Field:          m.Field,
		Error:          m.Error,
		Attempts:       attempts,
		Status:         m.Status,
		ReplayCount:    m.ReplayCount,
		EnqueuedAt:     m.EnqueuedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
