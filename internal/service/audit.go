package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/delexpay-ledger/internal/repository"
	"github.com/google/uuid"
)

// AuditEntry is one immutable row of the ledger audit trail.
type AuditEntry struct {
	Entity   string
	EntityID uuid.UUID
	ActorID  *uuid.UUID
	Action   string
	From     string
	To       string
	Details  map[string]any
}

// AuditService writes audit rows inside the caller's DB transaction so the
// trail commits or rolls back with the change it describes.
type AuditService struct{}

func NewAuditService() *AuditService {
	return &AuditService{}
}

func (s *AuditService) Write(ctx context.Context, qtx repository.Querier, entry AuditEntry) error {
	var details []byte
	if len(entry.Details) > 0 {
		var err error
		if details, err = json.Marshal(entry.Details); err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
	}
	if _, err := qtx.InsertAuditLog(ctx, repository.InsertAuditLogParams{
		EntityType: entry.Entity,
		EntityID:   repository.ToPgUUID(entry.EntityID),
		ActorID:    repository.OptionalUUID(entry.ActorID),
		Action:     entry.Action,
		PrevState:  optionalText(entry.From),
		NextState:  optionalText(entry.To),
		Metadata:   details,
	}); err != nil {
		return fmt.Errorf("insert audit log (%s %s): %w", entry.Entity, entry.Action, err)
	}
	return nil
}

func optionalText(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
