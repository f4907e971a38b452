package domain

import (
	"github.com/google/uuid"
)

// ClientCreate represents client creation data. ClientType selects which of
// the individual or company fields are required.
type ClientCreate struct {
	ClientType ClientType `json:"client_type" validate:"required,oneof=individual company"`
	Email      string     `json:"email,omitempty" validate:"omitempty,max=255"`
	Phone      string     `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address    string     `json:"address,omitempty" validate:"omitempty,max=500"`
	Note       string     `json:"note,omitempty" validate:"omitempty,max=5000"`

	FirstName   string         `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName    string         `json:"last_name,omitempty" validate:"omitempty,max=100"`
	MiddleName  string         `json:"middle_name,omitempty" validate:"omitempty,max=100"`
	DateOfBirth *Date          `json:"date_of_birth,omitempty"`
	TaxNumber   string         `json:"tax_number,omitempty" validate:"omitempty,max=20"`
	IsFOP       bool           `json:"is_fop,omitempty"`
	Passport    *PassportInput `json:"passport,omitempty"`

	CompanyName string `json:"company_name,omitempty" validate:"omitempty,max=255"`
	TaxID       string `json:"tax_id,omitempty" validate:"omitempty,max=20"`
}

// IndividualProps extracts the individual profile fields.
func (c ClientCreate) IndividualProps() IndividualProps {
	p := IndividualProps{
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		MiddleName:  c.MiddleName,
		DateOfBirth: c.DateOfBirth.Ptr(),
		TaxNumber:   c.TaxNumber,
		IsFOP:       c.IsFOP,
	}
	if c.Passport != nil {
		p.Passport = *c.Passport
	}
	return p
}

// CompanyProps extracts the company profile fields.
func (c ClientCreate) CompanyProps() CompanyProps {
	return CompanyProps{Name: c.CompanyName, TaxID: c.TaxID}
}

// CheckExclusiveFields rejects profile fields that belong to the other client type.
func (c ClientCreate) CheckExclusiveFields() error {
	switch c.ClientType {
	case ClientTypeIndividual:
		if c.CompanyName != "" || c.TaxID != "" {
			return NewValidationError("companyName", "company fields are not allowed for an individual client")
		}
	case ClientTypeCompany:
		if c.FirstName != "" || c.LastName != "" || c.MiddleName != "" || c.TaxNumber != "" ||
			c.DateOfBirth != nil || c.IsFOP || c.Passport != nil {
			return NewValidationError("firstName", "individual fields are not allowed for a company client")
		}
	}
	return nil
}

// ClientUpdate represents a partial client update. Absent keys are left
// unchanged; explicit nulls clear nullable fields.
type ClientUpdate struct {
	ClientType Field[ClientType] `json:"client_type"`
	Email      Field[string]     `json:"email"`
	Phone      Field[string]     `json:"phone"`
	Address    Field[string]     `json:"address"`
	Note       Field[string]     `json:"note"`

	FirstName   Field[string]        `json:"first_name"`
	LastName    Field[string]        `json:"last_name"`
	MiddleName  Field[string]        `json:"middle_name"`
	DateOfBirth Field[Date]          `json:"date_of_birth"`
	TaxNumber   Field[string]        `json:"tax_number"`
	IsFOP       Field[bool]          `json:"is_fop"`
	Passport    Field[PassportInput] `json:"passport"`

	CompanyName Field[string] `json:"company_name"`
	TaxID       Field[string] `json:"tax_id"`
}

// ClientPatch extracts the base record change.
func (u ClientUpdate) ClientPatch() ClientPatch {
	return ClientPatch{Email: u.Email, Phone: u.Phone, Address: u.Address, Note: u.Note}
}

// IndividualPatch extracts the individual profile change.
func (u ClientUpdate) IndividualPatch() IndividualPatch {
	return IndividualPatch{
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		MiddleName:  u.MiddleName,
		DateOfBirth: u.DateOfBirth,
		TaxNumber:   u.TaxNumber,
		IsFOP:       u.IsFOP,
		Passport:    u.Passport,
	}
}

// CompanyPatch extracts the company profile change.
func (u ClientUpdate) CompanyPatch() CompanyPatch {
	return CompanyPatch{Name: u.CompanyName, TaxID: u.TaxID}
}

// CheckExclusiveFields rejects profile fields that belong to the other client type.
func (u ClientUpdate) CheckExclusiveFields(t ClientType) error {
	switch t {
	case ClientTypeIndividual:
		if !u.CompanyPatch().empty() {
			return NewValidationError("companyName", "company fields are not allowed for an individual client")
		}
	case ClientTypeCompany:
		if !u.IndividualPatch().empty() {
			return NewValidationError("firstName", "individual fields are not allowed for a company client")
		}
	}
	return nil
}

// FullClient is a client together with its detail profile.
type FullClient struct {
	Client  *Client
	Details ClientDetails
}

// ClientView is the boundary representation of a client. Dates are ISO-8601 strings.
type ClientView struct {
	ID          uuid.UUID       `json:"id"`
	WorkspaceID uuid.UUID       `json:"workspace_id"`
	ClientType  ClientType      `json:"client_type"`
	DisplayName string          `json:"display_name"`
	Email       *string         `json:"email"`
	Phone       *string         `json:"phone"`
	Address     *string         `json:"address"`
	Note        *string         `json:"note"`
	CreatedBy   uuid.UUID       `json:"created_by"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	DeletedAt   *string         `json:"deleted_at"`
	Individual  *IndividualView `json:"individual,omitempty"`
	Company     *CompanyView    `json:"company,omitempty"`
}

type IndividualView struct {
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	MiddleName  *string       `json:"middle_name"`
	FullName    string        `json:"full_name"`
	DateOfBirth *string       `json:"date_of_birth"`
	TaxNumber   *string       `json:"tax_number"`
	IsFOP       bool          `json:"is_fop"`
	Passport    *PassportView `json:"passport"`
}

type PassportView struct {
	Series     string `json:"series,omitempty"`
	Number     string `json:"number"`
	IssuedBy   string `json:"issued_by"`
	IssuedDate string `json:"issued_date"`
}

type CompanyView struct {
	Name  string  `json:"name"`
	TaxID *string `json:"tax_id"`
}

// NewClientView renders a client and its profile for the boundary.
func NewClientView(c *Client, d ClientDetails) ClientView {
	v := ClientView{
		ID:          c.ID(),
		WorkspaceID: c.WorkspaceID(),
		ClientType:  c.Type(),
		Email:       c.Email(),
		Phone:       c.Phone(),
		Address:     c.Address(),
		Note:        c.Note(),
		CreatedBy:   c.CreatedBy(),
		CreatedAt:   FormatTime(c.CreatedAt()),
		UpdatedAt:   FormatTime(c.UpdatedAt()),
		DeletedAt:   formatTimePtr(c.DeletedAt()),
	}
	if d == nil {
		return v
	}
	v.DisplayName = d.DisplayName()
	MatchDetails(d,
		func(i *Individual) struct{} {
			v.Individual = newIndividualView(i)
			return struct{}{}
		},
		func(co *Company) struct{} {
			v.Company = &CompanyView{Name: co.Name, TaxID: co.TaxID}
			return struct{}{}
		},
	)
	return v
}

func newIndividualView(i *Individual) *IndividualView {
	v := &IndividualView{
		FirstName:   i.FirstName,
		LastName:    i.LastName,
		MiddleName:  i.MiddleName,
		FullName:    i.FullName(),
		DateOfBirth: FormatDate(i.DateOfBirth),
		TaxNumber:   i.TaxNumber,
		IsFOP:       i.IsFOP,
	}
	if i.Passport != nil {
		issued := i.Passport.IssuedDate()
		v.Passport = &PassportView{
			Series:     i.Passport.Series(),
			Number:     i.Passport.Number(),
			IssuedBy:   i.Passport.IssuedBy(),
			IssuedDate: *FormatDate(&issued),
		}
	}
	return v
}

// ClientList is a page of clients.
type ClientList struct {
	Items  []ClientView `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}
