package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClientType discriminates the detail profile of a client.
type ClientType string

const (
	ClientTypeIndividual ClientType = "individual"
	ClientTypeCompany    ClientType = "company"
)

func (t ClientType) Valid() bool {
	return t == ClientTypeIndividual || t == ClientTypeCompany
}

// ClientProps are the creatable fields of the base client record.
type ClientProps struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Type        ClientType
	Email       string
	Phone       string
	Address     string
	Note        string
	CreatedBy   uuid.UUID
}

// ClientPatch is a partial update of the base record.
type ClientPatch struct {
	Email   Field[string]
	Phone   Field[string]
	Address Field[string]
	Note    Field[string]
}

// ClientState is the flat persisted form used by stores to rehydrate a Client.
type ClientState struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Type        ClientType
	Email       *string
	Phone       *string
	Address     *string
	Note        *string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Client is the aggregate root of a contact record.
//
// Invariants:
//   - clientType is fixed at construction
//   - email and phone are stored normalized or not at all
//   - createdAt never changes; updatedAt moves only on Update and lifecycle transitions
type Client struct {
	id          uuid.UUID
	workspaceID uuid.UUID
	clientType  ClientType
	email       *string
	phone       *string
	address     *string
	note        *string
	createdBy   uuid.UUID
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewClient validates and normalizes the base fields of a new client.
func NewClient(p ClientProps, now time.Time) (*Client, error) {
	if p.WorkspaceID == uuid.Nil {
		return nil, NewValidationError("workspaceId", "workspace is required")
	}
	if !p.Type.Valid() {
		return nil, &Error{Kind: KindValidation, Field: "clientType", Value: string(p.Type), Message: "client type must be individual or company"}
	}
	if p.CreatedBy == uuid.Nil {
		return nil, NewValidationError("createdBy", "creator is required")
	}

	email, err := normalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	phone, err := normalizePhone(p.Phone)
	if err != nil {
		return nil, err
	}

	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	t := now.UTC()

	return &Client{
		id:          id,
		workspaceID: p.WorkspaceID,
		clientType:  p.Type,
		email:       email,
		phone:       phone,
		address:     n2p(strings.TrimSpace(p.Address)),
		note:        n2p(strings.TrimSpace(p.Note)),
		createdBy:   p.CreatedBy,
		createdAt:   t,
		updatedAt:   t,
	}, nil
}

// RehydrateClient rebuilds a stored client without re-running validation.
func RehydrateClient(s ClientState) *Client {
	return &Client{
		id:          s.ID,
		workspaceID: s.WorkspaceID,
		clientType:  s.Type,
		email:       s.Email,
		phone:       s.Phone,
		address:     s.Address,
		note:        s.Note,
		createdBy:   s.CreatedBy,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
		deletedAt:   s.DeletedAt,
	}
}

// State returns a copy of the client's fields for persistence.
func (c *Client) State() ClientState {
	return ClientState{
		ID:          c.id,
		WorkspaceID: c.workspaceID,
		Type:        c.clientType,
		Email:       c.email,
		Phone:       c.phone,
		Address:     c.address,
		Note:        c.note,
		CreatedBy:   c.createdBy,
		CreatedAt:   c.createdAt,
		UpdatedAt:   c.updatedAt,
		DeletedAt:   c.deletedAt,
	}
}

func (c *Client) ID() uuid.UUID          { return c.id }
func (c *Client) WorkspaceID() uuid.UUID { return c.workspaceID }
func (c *Client) Type() ClientType       { return c.clientType }
func (c *Client) Email() *string         { return c.email }
func (c *Client) Phone() *string         { return c.phone }
func (c *Client) Address() *string       { return c.address }
func (c *Client) Note() *string          { return c.note }
func (c *Client) CreatedBy() uuid.UUID   { return c.createdBy }
func (c *Client) CreatedAt() time.Time   { return c.createdAt }
func (c *Client) UpdatedAt() time.Time   { return c.updatedAt }
func (c *Client) DeletedAt() *time.Time  { return c.deletedAt }
func (c *Client) IsDeleted() bool        { return c.deletedAt != nil }

// Update applies a partial change. Nothing is modified if any field is invalid.
func (c *Client) Update(p ClientPatch, now time.Time) error {
	email, err := applyString(c.email, p.Email, func(v string) (string, error) {
		e, err := normalizeEmail(v)
		if err != nil || e == nil {
			return "", err
		}
		return *e, nil
	})
	if err != nil {
		return err
	}
	phone, err := applyString(c.phone, p.Phone, func(v string) (string, error) {
		ph, err := normalizePhone(v)
		if err != nil || ph == nil {
			return "", err
		}
		return *ph, nil
	})
	if err != nil {
		return err
	}
	address, _ := applyString(c.address, p.Address, trimmed)
	note, _ := applyString(c.note, p.Note, trimmed)

	c.email = email
	c.phone = phone
	c.address = address
	c.note = note
	c.Touch(now)
	return nil
}

// Touch moves updatedAt forward.
func (c *Client) Touch(now time.Time) {
	c.updatedAt = now.UTC()
}

// SoftDelete marks the client deleted. Deleting a deleted client is a no-op.
func (c *Client) SoftDelete(now time.Time) bool {
	if c.deletedAt != nil {
		return false
	}
	t := now.UTC()
	c.deletedAt = &t
	c.updatedAt = t
	return true
}

// Restore clears the deletion mark. Restoring an active client is a no-op.
func (c *Client) Restore(now time.Time) bool {
	if c.deletedAt == nil {
		return false
	}
	c.deletedAt = nil
	c.updatedAt = now.UTC()
	return true
}

func normalizeEmail(raw string) (*string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	e, err := NewEmail(raw)
	if err != nil {
		return nil, WrapValidation("email", raw, err)
	}
	v := e.String()
	return &v, nil
}

func normalizePhone(raw string) (*string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	p, err := NewPhone(raw)
	if err != nil {
		return nil, WrapValidation("phone", raw, err)
	}
	v := p.String()
	return &v, nil
}

func trimmed(v string) (string, error) {
	return strings.TrimSpace(v), nil
}
