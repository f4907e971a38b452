package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClientDetails is the detail profile of a client: exactly one of *Individual
// or *Company. The interface is sealed; branch on it with MatchDetails.
type ClientDetails interface {
	ClientType() ClientType
	DetailsClientID() uuid.UUID
	DisplayName() string
	sealedClientDetails()
}

// MatchDetails dispatches on the detail variant. Both arms are mandatory.
func MatchDetails[T any](d ClientDetails, individual func(*Individual) T, company func(*Company) T) T {
	switch v := d.(type) {
	case *Individual:
		return individual(v)
	case *Company:
		return company(v)
	default:
		panic(fmt.Sprintf("domain: unexpected client details %T", d))
	}
}

// Individual is the detail profile of a natural person.
type Individual struct {
	ClientID    uuid.UUID
	FirstName   string
	LastName    string
	MiddleName  *string
	DateOfBirth *time.Time
	TaxNumber   *string
	IsFOP       bool
	Passport    *PassportDetails
}

// IndividualProps are the creatable fields of an individual.
type IndividualProps struct {
	FirstName   string
	LastName    string
	MiddleName  string
	DateOfBirth *time.Time
	TaxNumber   string
	IsFOP       bool
	Passport    PassportInput
}

// IndividualPatch is a partial update of an individual.
type IndividualPatch struct {
	FirstName   Field[string]
	LastName    Field[string]
	MiddleName  Field[string]
	DateOfBirth Field[Date]
	TaxNumber   Field[string]
	IsFOP       Field[bool]
	Passport    Field[PassportInput]
}

func (p IndividualPatch) empty() bool {
	return !p.FirstName.IsSet() && !p.LastName.IsSet() && !p.MiddleName.IsSet() &&
		!p.DateOfBirth.IsSet() && !p.TaxNumber.IsSet() && !p.IsFOP.IsSet() && !p.Passport.IsSet()
}

func NewIndividual(clientID uuid.UUID, p IndividualProps, now time.Time) (*Individual, error) {
	first := strings.TrimSpace(p.FirstName)
	if first == "" {
		return nil, NewValidationError("firstName", "first name is required")
	}
	last := strings.TrimSpace(p.LastName)
	if last == "" {
		return nil, NewValidationError("lastName", "last name is required")
	}
	if err := checkDateOfBirth(p.DateOfBirth, now); err != nil {
		return nil, err
	}
	tax, err := normalizeTaxNumber(p.TaxNumber)
	if err != nil {
		return nil, err
	}
	passport, err := NewPassportDetails(p.Passport, now)
	if err != nil {
		return nil, WrapValidation("passport", p.Passport.Number, err)
	}

	return &Individual{
		ClientID:    clientID,
		FirstName:   first,
		LastName:    last,
		MiddleName:  n2p(strings.TrimSpace(p.MiddleName)),
		DateOfBirth: truncateDate(p.DateOfBirth),
		TaxNumber:   tax,
		IsFOP:       p.IsFOP,
		Passport:    passport,
	}, nil
}

func (i *Individual) ClientType() ClientType     { return ClientTypeIndividual }
func (i *Individual) DetailsClientID() uuid.UUID { return i.ClientID }
func (i *Individual) DisplayName() string        { return i.FullName() }
func (i *Individual) sealedClientDetails()       {}

// FullName is "Last First [Middle]".
func (i *Individual) FullName() string {
	parts := []string{i.LastName, i.FirstName}
	if i.MiddleName != nil {
		parts = append(parts, *i.MiddleName)
	}
	return strings.Join(parts, " ")
}

// Update applies a partial change. Nothing is modified if any field is invalid.
func (i *Individual) Update(p IndividualPatch, now time.Time) error {
	next := *i

	if v, ok := p.FirstName.Value(); ok || p.FirstName.IsNull() {
		v = strings.TrimSpace(v)
		if v == "" {
			return NewValidationError("firstName", "first name is required")
		}
		next.FirstName = v
	}
	if v, ok := p.LastName.Value(); ok || p.LastName.IsNull() {
		v = strings.TrimSpace(v)
		if v == "" {
			return NewValidationError("lastName", "last name is required")
		}
		next.LastName = v
	}
	next.MiddleName, _ = applyString(i.MiddleName, p.MiddleName, trimmed)

	if p.DateOfBirth.IsSet() {
		dob := p.DateOfBirth.Ptr()
		var t *time.Time
		if dob != nil {
			t = dob.Ptr()
		}
		if err := checkDateOfBirth(t, now); err != nil {
			return err
		}
		next.DateOfBirth = truncateDate(t)
	}

	if p.TaxNumber.IsSet() {
		v, _ := p.TaxNumber.Value()
		tax, err := normalizeTaxNumber(v)
		if err != nil {
			return err
		}
		next.TaxNumber = tax
	}

	if v, ok := p.IsFOP.Value(); ok {
		next.IsFOP = v
	} else if p.IsFOP.IsNull() {
		next.IsFOP = false
	}

	if p.Passport.IsSet() {
		in, _ := p.Passport.Value()
		passport, err := NewPassportDetails(in, now)
		if err != nil {
			return WrapValidation("passport", in.Number, err)
		}
		next.Passport = passport
	}

	*i = next
	return nil
}

// Company is the detail profile of a legal entity.
type Company struct {
	ClientID uuid.UUID
	Name     string
	TaxID    *string
}

// CompanyProps are the creatable fields of a company.
type CompanyProps struct {
	Name  string
	TaxID string
}

// CompanyPatch is a partial update of a company.
type CompanyPatch struct {
	Name  Field[string]
	TaxID Field[string]
}

func (p CompanyPatch) empty() bool {
	return !p.Name.IsSet() && !p.TaxID.IsSet()
}

func NewCompany(clientID uuid.UUID, p CompanyProps) (*Company, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, NewValidationError("companyName", "company name is required")
	}
	taxID, err := normalizeCompanyTaxID(p.TaxID)
	if err != nil {
		return nil, err
	}
	return &Company{ClientID: clientID, Name: name, TaxID: taxID}, nil
}

func (c *Company) ClientType() ClientType     { return ClientTypeCompany }
func (c *Company) DetailsClientID() uuid.UUID { return c.ClientID }
func (c *Company) DisplayName() string        { return c.Name }
func (c *Company) sealedClientDetails()       {}

// Update applies a partial change. Nothing is modified if any field is invalid.
func (c *Company) Update(p CompanyPatch) error {
	next := *c
	if v, ok := p.Name.Value(); ok || p.Name.IsNull() {
		v = strings.TrimSpace(v)
		if v == "" {
			return NewValidationError("companyName", "company name is required")
		}
		next.Name = v
	}
	if p.TaxID.IsSet() {
		v, _ := p.TaxID.Value()
		taxID, err := normalizeCompanyTaxID(v)
		if err != nil {
			return err
		}
		next.TaxID = taxID
	}
	*c = next
	return nil
}

func normalizeTaxNumber(raw string) (*string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := NewTaxNumber(raw)
	if err != nil {
		return nil, WrapValidation("taxNumber", raw, err)
	}
	v := t.String()
	return &v, nil
}

func normalizeCompanyTaxID(raw string) (*string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := NewCompanyTaxID(raw)
	if err != nil {
		return nil, WrapValidation("taxId", raw, err)
	}
	v := t.String()
	return &v, nil
}

func checkDateOfBirth(dob *time.Time, now time.Time) error {
	if dob != nil && dob.After(now) {
		return NewValidationError("dateOfBirth", "date of birth cannot be in the future")
	}
	return nil
}

func truncateDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
