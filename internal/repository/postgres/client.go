package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/repository"
	"github.com/Rrens/crm/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const clientColumns = `c.id, c.workspace_id, c.client_type, c.email, c.phone, c.address, c.note,
	c.created_by, c.created_at, c.updated_at, c.deleted_at`

const detailColumns = `i.first_name, i.last_name, i.middle_name, i.date_of_birth, i.tax_number,
	i.is_fop, i.passport, co.name, co.tax_id`

// ClientRepository stores clients with their individual or company profile.
// Passport data is sealed before it reaches the database.
type ClientRepository struct {
	db     *DB
	sealer *security.Sealer
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *DB, sealer *security.Sealer) *ClientRepository {
	return &ClientRepository{db: db, sealer: sealer}
}

// FindByID retrieves a client by ID, deleted or not
func (r *ClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	var s domain.ClientState
	err := r.db.Pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients c WHERE c.id = $1`, id).Scan(
		&s.ID, &s.WorkspaceID, &s.Type, &s.Email, &s.Phone, &s.Address, &s.Note,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return domain.RehydrateClient(normalizeState(s)), nil
}

// FindIndividualByClientID retrieves the individual profile of a client
func (r *ClientRepository) FindIndividualByClientID(ctx context.Context, clientID uuid.UUID) (*domain.Individual, error) {
	query := `
		SELECT client_id, first_name, last_name, middle_name, date_of_birth, tax_number, is_fop, passport
		FROM individuals
		WHERE client_id = $1
	`

	var ind domain.Individual
	var passport *string
	err := r.db.Pool.QueryRow(ctx, query, clientID).Scan(
		&ind.ClientID, &ind.FirstName, &ind.LastName, &ind.MiddleName,
		&ind.DateOfBirth, &ind.TaxNumber, &ind.IsFOP, &passport,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get individual: %w", err)
	}

	ind.DateOfBirth = utcDate(ind.DateOfBirth)
	if ind.Passport, err = repository.OpenPassport(r.sealer, clientID, passport); err != nil {
		return nil, err
	}
	return &ind, nil
}

// FindCompanyByClientID retrieves the company profile of a client
func (r *ClientRepository) FindCompanyByClientID(ctx context.Context, clientID uuid.UUID) (*domain.Company, error) {
	var co domain.Company
	err := r.db.Pool.QueryRow(ctx,
		`SELECT client_id, name, tax_id FROM companies WHERE client_id = $1`, clientID,
	).Scan(&co.ClientID, &co.Name, &co.TaxID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &co, nil
}

// SaveFullClient inserts the client row and its profile row in one transaction
func (r *ClientRepository) SaveFullClient(ctx context.Context, client *domain.Client, details domain.ClientDetails) error {
	s := client.State()

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO clients (id, workspace_id, client_type, email, phone, address, note,
			                     created_by, created_at, updated_at, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			s.ID, s.WorkspaceID, s.Type, s.Email, s.Phone, s.Address, s.Note,
			s.CreatedBy, s.CreatedAt, s.UpdatedAt, s.DeletedAt,
		)
		if err != nil {
			return err
		}
		return r.insertDetails(ctx, tx, s, details)
	})
	if err != nil {
		return r.writeError("create client", err, client, details)
	}
	return nil
}

func (r *ClientRepository) insertDetails(ctx context.Context, tx pgx.Tx, s domain.ClientState, details domain.ClientDetails) error {
	switch d := details.(type) {
	case *domain.Individual:
		passport, err := repository.SealPassport(r.sealer, s.ID, d.Passport)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO individuals (client_id, workspace_id, first_name, last_name, middle_name,
			                         date_of_birth, tax_number, is_fop, passport, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			s.ID, s.WorkspaceID, d.FirstName, d.LastName, d.MiddleName,
			d.DateOfBirth, d.TaxNumber, d.IsFOP, passport, s.DeletedAt,
		)
		return err
	case *domain.Company:
		_, err := tx.Exec(ctx, `
			INSERT INTO companies (client_id, workspace_id, name, tax_id, deleted_at)
			VALUES ($1, $2, $3, $4, $5)
		`, s.ID, s.WorkspaceID, d.Name, d.TaxID, s.DeletedAt)
		return err
	default:
		return fmt.Errorf("unsupported client details %T", details)
	}
}

// UpdateFullClient rewrites the client row and its profile row in one transaction
func (r *ClientRepository) UpdateFullClient(ctx context.Context, client *domain.Client, details domain.ClientDetails) error {
	s := client.State()

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE clients
			SET email = $2, phone = $3, address = $4, note = $5, updated_at = $6, deleted_at = $7
			WHERE id = $1
		`, s.ID, s.Email, s.Phone, s.Address, s.Note, s.UpdatedAt, s.DeletedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.NewEntityNotFound("client", s.ID.String())
		}

		switch d := details.(type) {
		case *domain.Individual:
			passport, err := repository.SealPassport(r.sealer, s.ID, d.Passport)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				UPDATE individuals
				SET first_name = $2, last_name = $3, middle_name = $4, date_of_birth = $5,
				    tax_number = $6, is_fop = $7, passport = $8, deleted_at = $9
				WHERE client_id = $1
			`, s.ID, d.FirstName, d.LastName, d.MiddleName, d.DateOfBirth,
				d.TaxNumber, d.IsFOP, passport, s.DeletedAt)
			return err
		case *domain.Company:
			_, err := tx.Exec(ctx, `
				UPDATE companies SET name = $2, tax_id = $3, deleted_at = $4
				WHERE client_id = $1
			`, s.ID, d.Name, d.TaxID, s.DeletedAt)
			return err
		default:
			return fmt.Errorf("unsupported client details %T", details)
		}
	})
	if err != nil {
		return r.writeError("update client", err, client, details)
	}
	return nil
}

func (r *ClientRepository) writeError(op string, err error, client *domain.Client, details domain.ClientDetails) error {
	if _, ok := domain.AsError(err); ok {
		return err
	}
	if derr := translateUnique(err, repository.ClientValues(client, details)); derr != err {
		return derr
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// ExistsByEmail reports whether an active client of the workspace uses email
func (r *ClientRepository) ExistsByEmail(ctx context.Context, workspaceID uuid.UUID, email string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT EXISTS(SELECT 1 FROM clients
		WHERE workspace_id = $1 AND email = $2 AND deleted_at IS NULL AND id <> $3)
	`, workspaceID, email, excludeID)
}

// ExistsByPhone reports whether an active client of the workspace uses phone
func (r *ClientRepository) ExistsByPhone(ctx context.Context, workspaceID uuid.UUID, phone string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT EXISTS(SELECT 1 FROM clients
		WHERE workspace_id = $1 AND phone = $2 AND deleted_at IS NULL AND id <> $3)
	`, workspaceID, phone, excludeID)
}

// ExistsByTaxNumber reports whether an active individual of the workspace uses taxNumber
func (r *ClientRepository) ExistsByTaxNumber(ctx context.Context, workspaceID uuid.UUID, taxNumber string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT EXISTS(SELECT 1 FROM individuals
		WHERE workspace_id = $1 AND tax_number = $2 AND deleted_at IS NULL AND client_id <> $3)
	`, workspaceID, taxNumber, excludeID)
}

// ExistsByTaxID reports whether an active company of the workspace uses taxID
func (r *ClientRepository) ExistsByTaxID(ctx context.Context, workspaceID uuid.UUID, taxID string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT EXISTS(SELECT 1 FROM companies
		WHERE workspace_id = $1 AND tax_id = $2 AND deleted_at IS NULL AND client_id <> $3)
	`, workspaceID, taxID, excludeID)
}

func (r *ClientRepository) exists(ctx context.Context, query string, workspaceID uuid.UUID, value string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, workspaceID, value, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check client uniqueness: %w", err)
	}
	return exists, nil
}

// listWhere builds the shared WHERE clause of list and count queries.
func listWhere(workspaceID uuid.UUID, filter domain.ClientFilter) (string, []any) {
	var b strings.Builder
	args := []any{workspaceID}

	b.WriteString(`WHERE c.workspace_id = $1`)
	if filter.OnlyDeleted {
		b.WriteString(` AND c.deleted_at IS NOT NULL`)
	} else {
		b.WriteString(` AND c.deleted_at IS NULL`)
	}

	if filter.Search != "" {
		args = append(args, security.LikePattern(filter.Search))
		n := fmt.Sprintf("$%d", len(args))
		cols := []string{
			"lower(i.first_name)", "lower(i.last_name)", "lower(i.middle_name)",
			"lower(co.name)", "lower(c.email)", "c.phone", "i.tax_number", "co.tax_id",
		}
		conds := make([]string, len(cols))
		for k, col := range cols {
			conds[k] = col + ` LIKE ` + n + ` ESCAPE '\'`
		}
		b.WriteString(` AND (` + strings.Join(conds, " OR ") + `)`)
	}
	return b.String(), args
}

// FindAllByWorkspaceID lists one page of clients, newest first
func (r *ClientRepository) FindAllByWorkspaceID(ctx context.Context, workspaceID uuid.UUID, filter domain.ClientFilter) ([]domain.FullClient, error) {
	where, args := listWhere(workspaceID, filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s, %s
		FROM clients c
		LEFT JOIN individuals i ON i.client_id = c.id
		LEFT JOIN companies co ON co.client_id = c.id
		%s
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $%d OFFSET $%d
	`, clientColumns, detailColumns, where, len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []domain.FullClient
	for rows.Next() {
		full, err := r.scanFullClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, full)
	}
	return clients, rows.Err()
}

// CountAllByWorkspaceID counts the clients a list query would return without paging
func (r *ClientRepository) CountAllByWorkspaceID(ctx context.Context, workspaceID uuid.UUID, filter domain.ClientFilter) (int, error) {
	where, args := listWhere(workspaceID, filter)
	query := `
		SELECT COUNT(*)
		FROM clients c
		LEFT JOIN individuals i ON i.client_id = c.id
		LEFT JOIN companies co ON co.client_id = c.id
		` + where

	var total int
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return total, nil
}

func (r *ClientRepository) scanFullClient(rows pgx.Rows) (domain.FullClient, error) {
	var (
		s                                domain.ClientState
		firstName, lastName, middleName  *string
		dateOfBirth                      *time.Time
		taxNumber, passport, name, taxID *string
		isFOP                            *bool
	)
	if err := rows.Scan(
		&s.ID, &s.WorkspaceID, &s.Type, &s.Email, &s.Phone, &s.Address, &s.Note,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt,
		&firstName, &lastName, &middleName, &dateOfBirth, &taxNumber, &isFOP, &passport,
		&name, &taxID,
	); err != nil {
		return domain.FullClient{}, fmt.Errorf("failed to scan client: %w", err)
	}

	client := domain.RehydrateClient(normalizeState(s))
	full := domain.FullClient{Client: client}

	switch s.Type {
	case domain.ClientTypeIndividual:
		if firstName == nil {
			break
		}
		ind := &domain.Individual{
			ClientID:    s.ID,
			FirstName:   *firstName,
			LastName:    deref(lastName),
			MiddleName:  middleName,
			DateOfBirth: utcDate(dateOfBirth),
			TaxNumber:   taxNumber,
			IsFOP:       isFOP != nil && *isFOP,
		}
		p, err := repository.OpenPassport(r.sealer, s.ID, passport)
		if err != nil {
			return domain.FullClient{}, err
		}
		ind.Passport = p
		full.Details = ind
	case domain.ClientTypeCompany:
		if name == nil {
			break
		}
		full.Details = &domain.Company{ClientID: s.ID, Name: *name, TaxID: taxID}
	}
	return full, nil
}

// SoftDelete marks the client and its profile deleted
func (r *ClientRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE clients SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at,
		); err != nil {
			return err
		}
		return mirrorDeletedAt(ctx, tx, id, &at)
	})
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}

// Restore clears the deletion mark of the client and its profile
func (r *ClientRepository) Restore(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE clients SET deleted_at = NULL, updated_at = $2 WHERE id = $1`, id, at,
		); err != nil {
			return err
		}
		return mirrorDeletedAt(ctx, tx, id, nil)
	})
	if err != nil {
		if derr := translateUnique(err, repository.StoredClientValues(ctx, r, id)); derr != err {
			return derr
		}
		return fmt.Errorf("failed to restore client: %w", err)
	}
	return nil
}

func mirrorDeletedAt(ctx context.Context, tx pgx.Tx, id uuid.UUID, at *time.Time) error {
	if _, err := tx.Exec(ctx, `UPDATE individuals SET deleted_at = $2 WHERE client_id = $1`, id, at); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE companies SET deleted_at = $2 WHERE client_id = $1`, id, at)
	return err
}

// HardDelete removes the client; the profile row cascades
func (r *ClientRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to hard delete client: %w", err)
	}
	return nil
}

func normalizeState(s domain.ClientState) domain.ClientState {
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if s.DeletedAt != nil {
		t := s.DeletedAt.UTC()
		s.DeletedAt = &t
	}
	return s
}

func utcDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
