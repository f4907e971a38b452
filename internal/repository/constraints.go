// Package repository holds what the storage drivers share: the unique index
// catalogue and helpers that translate constraint violations into domain errors.
package repository

import (
	"context"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
)

type indexTarget struct {
	entity string
	field  string
}

// uniqueIndexes lists every unique index declared in migrations/ by name.
var uniqueIndexes = map[string]indexTarget{
	"users_email_key":                   {entity: "user", field: "email"},
	"workspaces_slug_key":               {entity: "workspace", field: "slug"},
	"clients_email_active_key":          {entity: "client", field: "email"},
	"clients_phone_active_key":          {entity: "client", field: "phone"},
	"individuals_tax_number_active_key": {entity: "client", field: "taxNumber"},
	"companies_tax_id_active_key":       {entity: "client", field: "taxId"},
}

// DuplicateForIndex converts a unique index violation into DuplicateEntity.
// values supplies the offending value per field and may be nil.
func DuplicateForIndex(index string, values map[string]string) (*domain.Error, bool) {
	target, ok := uniqueIndexes[index]
	if !ok {
		return nil, false
	}
	return domain.NewDuplicateEntity(target.entity, target.field, values[target.field]), true
}

// ClientValues returns the unique identifiers of a client keyed by field.
func ClientValues(client *domain.Client, details domain.ClientDetails) map[string]string {
	values := make(map[string]string, 4)
	if v := client.Email(); v != nil {
		values["email"] = *v
	}
	if v := client.Phone(); v != nil {
		values["phone"] = *v
	}
	if details == nil {
		return values
	}
	domain.MatchDetails(details,
		func(i *domain.Individual) struct{} {
			if i.TaxNumber != nil {
				values["taxNumber"] = *i.TaxNumber
			}
			return struct{}{}
		},
		func(c *domain.Company) struct{} {
			if c.TaxID != nil {
				values["taxId"] = *c.TaxID
			}
			return struct{}{}
		},
	)
	return values
}

// ClientFinder is the read side StoredClientValues needs.
type ClientFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error)
	FindIndividualByClientID(ctx context.Context, clientID uuid.UUID) (*domain.Individual, error)
	FindCompanyByClientID(ctx context.Context, clientID uuid.UUID) (*domain.Company, error)
}

// StoredClientValues loads the unique identifiers of a stored client. It is
// used after a failed write, so lookup errors yield nil instead of masking it.
func StoredClientValues(ctx context.Context, finder ClientFinder, id uuid.UUID) map[string]string {
	client, err := finder.FindByID(ctx, id)
	if err != nil || client == nil {
		return nil
	}

	var details domain.ClientDetails
	switch client.Type() {
	case domain.ClientTypeIndividual:
		if individual, err := finder.FindIndividualByClientID(ctx, id); err == nil && individual != nil {
			details = individual
		}
	case domain.ClientTypeCompany:
		if company, err := finder.FindCompanyByClientID(ctx, id); err == nil && company != nil {
			details = company
		}
	}
	return ClientValues(client, details)
}
