package repository

import (
	"fmt"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/security"
	"github.com/google/uuid"
)

type passportRecord struct {
	Series     string    `json:"series,omitempty"`
	Number     string    `json:"number"`
	IssuedBy   string    `json:"issued_by"`
	IssuedDate time.Time `json:"issued_date"`
}

// SealPassport encrypts a passport for storage, bound to its client id.
// A nil passport is stored as NULL.
func SealPassport(sealer *security.Sealer, clientID uuid.UUID, p *domain.PassportDetails) (*string, error) {
	if p == nil {
		return nil, nil
	}
	sealed, err := sealer.SealJSON(clientID[:], passportRecord{
		Series:     p.Series(),
		Number:     p.Number(),
		IssuedBy:   p.IssuedBy(),
		IssuedDate: p.IssuedDate(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seal passport: %w", err)
	}
	return &sealed, nil
}

// OpenPassport reverses SealPassport.
func OpenPassport(sealer *security.Sealer, clientID uuid.UUID, sealed *string) (*domain.PassportDetails, error) {
	if sealed == nil || *sealed == "" {
		return nil, nil
	}
	var rec passportRecord
	if err := sealer.OpenJSON(clientID[:], *sealed, &rec); err != nil {
		return nil, fmt.Errorf("failed to open passport: %w", err)
	}
	return domain.RestorePassportDetails(rec.Series, rec.Number, rec.IssuedBy, rec.IssuedDate), nil
}
