package service

import (
	"context"
	"sync"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockWorkspaceRepository mocks the WorkspaceRepository interface
type MockWorkspaceRepository struct {
	mock.Mock
}

func (m *MockWorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Workspace), args.Error(1)
}

func (m *MockWorkspaceRepository) GetBySlug(ctx context.Context, slug string) (*domain.Workspace, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Workspace), args.Error(1)
}

func (m *MockWorkspaceRepository) GetMember(ctx context.Context, workspaceID, userID uuid.UUID) (*domain.WorkspaceMember, error) {
	args := m.Called(ctx, workspaceID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WorkspaceMember), args.Error(1)
}

func (m *MockWorkspaceRepository) Create(ctx context.Context, workspace *domain.Workspace, owner *domain.WorkspaceMember) error {
	args := m.Called(ctx, workspace, owner)
	return args.Error(0)
}

func (m *MockWorkspaceRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *MockWorkspaceRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Workspace, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Workspace), args.Error(1)
}

func (m *MockWorkspaceRepository) Update(ctx context.Context, workspace *domain.Workspace) error {
	args := m.Called(ctx, workspace)
	return args.Error(0)
}

func (m *MockWorkspaceRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockWorkspaceRepository) Restore(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWorkspaceRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWorkspaceRepository) AddMember(ctx context.Context, member *domain.WorkspaceMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockWorkspaceRepository) UpdateMember(ctx context.Context, member *domain.WorkspaceMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockWorkspaceRepository) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	args := m.Called(ctx, workspaceID, userID)
	return args.Error(0)
}

func (m *MockWorkspaceRepository) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]domain.WorkspaceMember, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WorkspaceMember), args.Error(1)
}

// MockUserRepository mocks the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// MockClientRepository mocks the ClientRepository interface
type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

func (m *MockClientRepository) FindIndividualByClientID(ctx context.Context, clientID uuid.UUID) (*domain.Individual, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Individual), args.Error(1)
}

func (m *MockClientRepository) FindCompanyByClientID(ctx context.Context, clientID uuid.UUID) (*domain.Company, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Company), args.Error(1)
}

func (m *MockClientRepository) SaveFullClient(ctx context.Context, client *domain.Client, details domain.ClientDetails) error {
	args := m.Called(ctx, client, details)
	return args.Error(0)
}

func (m *MockClientRepository) UpdateFullClient(ctx context.Context, client *domain.Client, details domain.ClientDetails) error {
	args := m.Called(ctx, client, details)
	return args.Error(0)
}

func (m *MockClientRepository) ExistsByEmail(ctx context.Context, workspaceID uuid.UUID, email string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, workspaceID, email, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockClientRepository) ExistsByPhone(ctx context.Context, workspaceID uuid.UUID, phone string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, workspaceID, phone, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockClientRepository) ExistsByTaxNumber(ctx context.Context, workspaceID uuid.UUID, taxNumber string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, workspaceID, taxNumber, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockClientRepository) ExistsByTaxID(ctx context.Context, workspaceID uuid.UUID, taxID string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, workspaceID, taxID, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockClientRepository) FindAllByWorkspaceID(ctx context.Context, workspaceID uuid.UUID, filter domain.ClientFilter) ([]domain.FullClient, error) {
	args := m.Called(ctx, workspaceID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FullClient), args.Error(1)
}

func (m *MockClientRepository) CountAllByWorkspaceID(ctx context.Context, workspaceID uuid.UUID, filter domain.ClientFilter) (int, error) {
	args := m.Called(ctx, workspaceID, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockClientRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockClientRepository) Restore(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockClientRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func activeMember(workspaceID, userID uuid.UUID, role domain.RoleName) *domain.WorkspaceMember {
	return &domain.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		Status:      domain.MemberActive,
		JoinedAt:    time.Now().UTC(),
	}
}
