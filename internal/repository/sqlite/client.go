package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/repository"
	"github.com/Rrens/crm/internal/security"
	"github.com/google/uuid"
)

const clientColumns = `c.id, c.workspace_id, c.client_type, c.email, c.phone, c.address, c.note,
	c.created_by, c.created_at, c.updated_at, c.deleted_at`

const detailColumns = `i.first_name, i.last_name, i.middle_name, i.date_of_birth, i.tax_number,
	i.is_fop, i.passport, co.name, co.tax_id`

// ClientRepository stores clients with their individual or company profile.
// Search folds both sides with ulower, so it is case-insensitive beyond ASCII.
type ClientRepository struct {
	db     *DB
	sealer *security.Sealer
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *DB, sealer *security.Sealer) *ClientRepository {
	return &ClientRepository{db: db, sealer: sealer}
}

type clientRow struct {
	id, workspaceID, createdBy  uuid.UUID
	clientType                  string
	email, phone, address, note *string
	createdAt, updatedAt        string
	deletedAt                   sql.NullString
}

func (r *clientRow) dest() []any {
	return []any{
		&r.id, &r.workspaceID, &r.clientType, &r.email, &r.phone, &r.address, &r.note,
		&r.createdBy, &r.createdAt, &r.updatedAt, &r.deletedAt,
	}
}

func (r *clientRow) client() (*domain.Client, error) {
	createdAt, err := parseTime(r.createdAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(r.updatedAt)
	if err != nil {
		return nil, err
	}
	deletedAt, err := parseTimePtr(r.deletedAt)
	if err != nil {
		return nil, err
	}
	return domain.RehydrateClient(domain.ClientState{
		ID:          r.id,
		WorkspaceID: r.workspaceID,
		Type:        domain.ClientType(r.clientType),
		Email:       r.email,
		Phone:       r.phone,
		Address:     r.address,
		Note:        r.note,
		CreatedBy:   r.createdBy,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
	}), nil
}

// FindByID retrieves a client by ID, deleted or not
func (r *ClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	var row clientRow
	err := r.db.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients c WHERE c.id = ?`, id).Scan(row.dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return row.client()
}

// FindIndividualByClientID retrieves the individual profile of a client
func (r *ClientRepository) FindIndividualByClientID(ctx context.Context, clientID uuid.UUID) (*domain.Individual, error) {
	var (
		ind      domain.Individual
		dob      sql.NullString
		passport *string
	)
	err := r.db.db.QueryRowContext(ctx, `
		SELECT client_id, first_name, last_name, middle_name, date_of_birth, tax_number, is_fop, passport
		FROM individuals
		WHERE client_id = ?
	`, clientID).Scan(
		&ind.ClientID, &ind.FirstName, &ind.LastName, &ind.MiddleName,
		&dob, &ind.TaxNumber, &ind.IsFOP, &passport,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get individual: %w", err)
	}

	if ind.DateOfBirth, err = parseDatePtr(dob); err != nil {
		return nil, err
	}
	if ind.Passport, err = repository.OpenPassport(r.sealer, clientID, passport); err != nil {
		return nil, err
	}
	return &ind, nil
}

// FindCompanyByClientID retrieves the company profile of a client
func (r *ClientRepository) FindCompanyByClientID(ctx context.Context, clientID uuid.UUID) (*domain.Company, error) {
	var co domain.Company
	err := r.db.db.QueryRowContext(ctx,
		`SELECT client_id, name, tax_id FROM companies WHERE client_id = ?`, clientID,
	).Scan(&co.ClientID, &co.Name, &co.TaxID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &co, nil
}

// SaveFullClient inserts the client row and its profile row in one transaction
func (r *ClientRepository) SaveFullClient(ctx context.Context, client *domain.Client, details domain.ClientDetails) error {
	s := client.State()

	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clients (id, workspace_id, client_type, email, phone, address, note,
			                     created_by, created_at, updated_at, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			s.ID, s.WorkspaceID, string(s.Type), s.Email, s.Phone, s.Address, s.Note,
			s.CreatedBy, formatTime(s.CreatedAt), formatTime(s.UpdatedAt), formatTimePtr(s.DeletedAt),
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

func (r *ClientRepository) insertDetails(ctx context.Context, tx *sql.Tx, s domain.ClientState, details domain.ClientDetails) error {
	switch d := details.(type) {
	case *domain.Individual:
		passport, err := repository.SealPassport(r.sealer, s.ID, d.Passport)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO individuals (client_id, workspace_id, first_name, last_name, middle_name,
			                         date_of_birth, tax_number, is_fop, passport, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			s.ID, s.WorkspaceID, d.FirstName, d.LastName, d.MiddleName,
			formatDatePtr(d.DateOfBirth), d.TaxNumber, d.IsFOP, passport, formatTimePtr(s.DeletedAt),
		)
		return err
	case *domain.Company:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO companies (client_id, workspace_id, name, tax_id, deleted_at)
			VALUES (?, ?, ?, ?, ?)
		`, s.ID, s.WorkspaceID, d.Name, d.TaxID, formatTimePtr(s.DeletedAt))
		return err
	default:
		return fmt.Errorf("unsupported client details %T", details)
	}
}

// UpdateFullClient rewrites the client row and its profile row in one transaction
func (r *ClientRepository) UpdateFullClient(ctx context.Context, client *domain.Client, details domain.ClientDetails) error {
	s := client.State()
	deletedAt := formatTimePtr(s.DeletedAt)

	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE clients
			SET email = ?, phone = ?, address = ?, note = ?, updated_at = ?, deleted_at = ?
			WHERE id = ?
		`, s.Email, s.Phone, s.Address, s.Note, formatTime(s.UpdatedAt), deletedAt, s.ID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.NewEntityNotFound("client", s.ID.String())
		}

		switch d := details.(type) {
		case *domain.Individual:
			passport, err := repository.SealPassport(r.sealer, s.ID, d.Passport)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE individuals
				SET first_name = ?, last_name = ?, middle_name = ?, date_of_birth = ?,
				    tax_number = ?, is_fop = ?, passport = ?, deleted_at = ?
				WHERE client_id = ?
			`, d.FirstName, d.LastName, d.MiddleName, formatDatePtr(d.DateOfBirth),
				d.TaxNumber, d.IsFOP, passport, deletedAt, s.ID)
			return err
		case *domain.Company:
			_, err := tx.ExecContext(ctx,
				`UPDATE companies SET name = ?, tax_id = ?, deleted_at = ? WHERE client_id = ?`,
				d.Name, d.TaxID, deletedAt, s.ID,
			)
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
		WHERE workspace_id = ? AND email = ? AND deleted_at IS NULL AND id <> ?)
	`, workspaceID, email, excludeID)
}

// ExistsByPhone reports whether an active client of the workspace uses phone
func (r *ClientRepository) ExistsByPhone(ctx context.Context, workspaceID uuid.UUID, phone string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT EXISTS(SELECT 1 FROM clients
		WHERE workspace_id = ? AND phone = ? AND deleted_at IS NULL AND id <> ?)
	`, workspaceID, phone, excludeID)
}

// ExistsByTaxNumber reports whether an active individual of the workspace uses taxNumber
func (r *ClientRepository) ExistsByTaxNumber(ctx context.Context, workspaceID uuid.UUID, taxNumber string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT EXISTS(SELECT 1 FROM individuals
		WHERE workspace_id = ? AND tax_number = ? AND deleted_at IS NULL AND client_id <> ?)
	`, workspaceID, taxNumber, excludeID)
}

// ExistsByTaxID reports whether an active company of the workspace uses taxID
func (r *ClientRepository) ExistsByTaxID(ctx context.Context, workspaceID uuid.UUID, taxID string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT EXISTS(SELECT 1 FROM companies
		WHERE workspace_id = ? AND tax_id = ? AND deleted_at IS NULL AND client_id <> ?)
	`, workspaceID, taxID, excludeID)
}

func (r *ClientRepository) exists(ctx context.Context, query string, workspaceID uuid.UUID, value string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.db.QueryRowContext(ctx, query, workspaceID, value, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check client uniqueness: %w", err)
	}
	return exists, nil
}

var searchColumns = []string{
	"ulower(i.first_name)", "ulower(i.last_name)", "ulower(i.middle_name)",
	"ulower(co.name)", "c.email", "c.phone", "i.tax_number", "co.tax_id",
}

func listWhere(workspaceID uuid.UUID, filter domain.ClientFilter) (string, []any) {
	var b strings.Builder
	args := []any{workspaceID}

	b.WriteString(`WHERE c.workspace_id = ?`)
	if filter.OnlyDeleted {
		b.WriteString(` AND c.deleted_at IS NOT NULL`)
	} else {
		b.WriteString(` AND c.deleted_at IS NULL`)
	}

	if filter.Search != "" {
		pattern := security.LikePattern(filter.Search)
		conds := make([]string, len(searchColumns))
		for k, col := range searchColumns {
			conds[k] = col + ` LIKE ? ESCAPE '\'`
			args = append(args, pattern)
		}
		b.WriteString(` AND (` + strings.Join(conds, " OR ") + `)`)
	}
	return b.String(), args
}

// FindAllByWorkspaceID lists one page of clients, newest first
func (r *ClientRepository) FindAllByWorkspaceID(ctx context.Context, workspaceID uuid.UUID, filter domain.ClientFilter) ([]domain.FullClient, error) {
	where, args := listWhere(workspaceID, filter)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.db.QueryContext(ctx, `
		SELECT `+clientColumns+`, `+detailColumns+`
		FROM clients c
		LEFT JOIN individuals i ON i.client_id = c.id
		LEFT JOIN companies co ON co.client_id = c.id
		`+where+`
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT ? OFFSET ?
	`, args...)
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

	var total int
	err := r.db.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM clients c
		LEFT JOIN individuals i ON i.client_id = c.id
		LEFT JOIN companies co ON co.client_id = c.id
		`+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return total, nil
}

func (r *ClientRepository) scanFullClient(rows *sql.Rows) (domain.FullClient, error) {
	var (
		row                              clientRow
		firstName, lastName, middleName  *string
		dob                              sql.NullString
		taxNumber, passport, name, taxID *string
		isFOP                            sql.NullBool
	)
	dest := append(row.dest(), &firstName, &lastName, &middleName, &dob, &taxNumber, &isFOP, &passport, &name, &taxID)
	if err := rows.Scan(dest...); err != nil {
		return domain.FullClient{}, fmt.Errorf("failed to scan client: %w", err)
	}

	client, err := row.client()
	if err != nil {
		return domain.FullClient{}, err
	}
	full := domain.FullClient{Client: client}

	switch client.Type() {
	case domain.ClientTypeIndividual:
		if firstName == nil {
			break
		}
		dateOfBirth, err := parseDatePtr(dob)
		if err != nil {
			return domain.FullClient{}, err
		}
		p, err := repository.OpenPassport(r.sealer, client.ID(), passport)
		if err != nil {
			return domain.FullClient{}, err
		}
		ind := &domain.Individual{
			ClientID:    client.ID(),
			FirstName:   *firstName,
			MiddleName:  middleName,
			DateOfBirth: dateOfBirth,
			TaxNumber:   taxNumber,
			IsFOP:       isFOP.Valid && isFOP.Bool,
			Passport:    p,
		}
		if lastName != nil {
			ind.LastName = *lastName
		}
		full.Details = ind
	case domain.ClientTypeCompany:
		if name == nil {
			break
		}
		full.Details = &domain.Company{ClientID: client.ID(), Name: *name, TaxID: taxID}
	}
	return full, nil
}

// SoftDelete marks the client and its profile deleted
func (r *ClientRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	ts := formatTime(at)
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE clients SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, ts, ts, id,
		); err != nil {
			return err
		}
		return mirrorDeletedAt(ctx, tx, id, &ts)
	})
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}

// Restore clears the deletion mark of the client and its profile
func (r *ClientRepository) Restore(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE clients SET deleted_at = NULL, updated_at = ? WHERE id = ?`, formatTime(at), id,
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

func mirrorDeletedAt(ctx context.Context, tx *sql.Tx, id uuid.UUID, at *string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE individuals SET deleted_at = ? WHERE client_id = ?`, at, id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE companies SET deleted_at = ? WHERE client_id = ?`, at, id)
	return err
}

// HardDelete removes the client; the profile row cascades
func (r *ClientRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to hard delete client: %w", err)
	}
	return nil
}
