package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type clientMocks struct {
	clients    *MockClientRepository
	workspaces *MockWorkspaceRepository
	publisher  *recordingPublisher
}

func newClientServiceWithMocks() (*ClientService, clientMocks) {
	m := clientMocks{
		clients:    new(MockClientRepository),
		workspaces: new(MockWorkspaceRepository),
		publisher:  &recordingPublisher{},
	}
	svc := NewClientService(m.clients, m.workspaces, NewAuthorizationService(m.workspaces, nil), m.publisher, nil, 20, 100)
	return svc, m
}

func (m clientMocks) member(workspaceID, userID uuid.UUID, role domain.RoleName) {
	m.workspaces.On("GetMember", mock.Anything, workspaceID, userID).Return(activeMember(workspaceID, userID, role), nil)
}

func storedIndividual(t *testing.T, workspaceID, creator uuid.UUID) (*domain.Client, *domain.Individual) {
	t.Helper()
	now := time.Now()
	client, err := domain.NewClient(domain.ClientProps{
		WorkspaceID: workspaceID,
		Type:        domain.ClientTypeIndividual,
		Email:       "ivan@acme.ua",
		CreatedBy:   creator,
	}, now)
	require.NoError(t, err)
	individual, err := domain.NewIndividual(client.ID(), domain.IndividualProps{FirstName: "Ivan", LastName: "Petrenko"}, now)
	require.NoError(t, err)
	return client, individual
}

func TestClientService_Create(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	userID := uuid.New()

	t.Run("individual", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)
		m.clients.On("ExistsByEmail", ctx, workspaceID, "ivan@acme.ua", uuid.Nil).Return(false, nil)
		m.clients.On("ExistsByPhone", ctx, workspaceID, "+380671234567", uuid.Nil).Return(false, nil)
		m.clients.On("ExistsByTaxNumber", ctx, workspaceID, "1234567890", uuid.Nil).Return(false, nil)
		m.clients.On("SaveFullClient", ctx, mock.AnythingOfType("*domain.Client"), mock.AnythingOfType("*domain.Individual")).Return(nil)

		view, err := svc.Create(ctx, userID, workspaceID, domain.ClientCreate{
			ClientType: domain.ClientTypeIndividual,
			Email:      " Ivan@Acme.UA ",
			Phone:      "067 123 45 67",
			FirstName:  "Ivan",
			LastName:   "Petrenko",
			TaxNumber:  "1234567890",
		})
		require.NoError(t, err)
		assert.Equal(t, "ivan@acme.ua", *view.Email)
		assert.Equal(t, "+380671234567", *view.Phone)
		assert.Equal(t, "Petrenko Ivan", view.DisplayName)
		assert.Equal(t, userID, view.CreatedBy)
		require.NotNil(t, view.Individual)
		assert.Nil(t, view.Company)
		assert.Equal(t, []domain.EventType{domain.EventClientCreated}, m.publisher.types())
		m.clients.AssertExpectations(t)
	})

	t.Run("unknown client type", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)

		_, err := svc.Create(ctx, userID, workspaceID, domain.ClientCreate{ClientType: "partner"})
		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindValidation, de.Kind)
		assert.Equal(t, "clientType", de.Field)
	})

	t.Run("company with individual fields", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)

		_, err := svc.Create(ctx, userID, workspaceID, domain.ClientCreate{
			ClientType:  domain.ClientTypeCompany,
			CompanyName: "Acme",
			FirstName:   "Ivan",
		})
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		assert.Empty(t, m.clients.Calls)
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)
		m.clients.On("ExistsByEmail", ctx, workspaceID, "office@acme.ua", uuid.Nil).Return(true, nil)

		_, err := svc.Create(ctx, userID, workspaceID, domain.ClientCreate{
			ClientType:  domain.ClientTypeCompany,
			CompanyName: "Acme",
			Email:       "office@acme.ua",
		})
		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindDuplicateEntity, de.Kind)
		assert.Equal(t, "email", de.Field)
		assert.Equal(t, "office@acme.ua", de.Value)
		m.clients.AssertNotCalled(t, "SaveFullClient", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store rejects a concurrent duplicate", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)
		m.clients.On("ExistsByTaxID", ctx, workspaceID, "12345678", uuid.Nil).Return(false, nil)
		m.clients.On("SaveFullClient", ctx, mock.Anything, mock.Anything).
			Return(domain.NewDuplicateEntity("client", "taxId", "12345678"))

		_, err := svc.Create(ctx, userID, workspaceID, domain.ClientCreate{
			ClientType:  domain.ClientTypeCompany,
			CompanyName: "Acme",
			TaxID:       "12345678",
		})
		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindDuplicateEntity, de.Kind)
		assert.Equal(t, "taxId", de.Field)
		assert.Empty(t, m.publisher.types())
	})

	t.Run("publish failure does not fail the create", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.publisher.err = errors.New("redis down")
		m.member(workspaceID, userID, domain.RoleUser)
		m.clients.On("SaveFullClient", ctx, mock.Anything, mock.Anything).Return(nil)

		view, err := svc.Create(ctx, userID, workspaceID, domain.ClientCreate{
			ClientType:  domain.ClientTypeCompany,
			CompanyName: "Acme",
		})
		require.NoError(t, err)
		assert.Equal(t, "Acme", view.DisplayName)
	})

	t.Run("non-member", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.workspaces.On("GetMember", ctx, workspaceID, userID).Return(nil, nil)

		_, err := svc.Create(ctx, userID, workspaceID, domain.ClientCreate{ClientType: domain.ClientTypeCompany, CompanyName: "Acme"})
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	})
}

func TestClientService_Update(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	userID := uuid.New()

	t.Run("client type is immutable", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()

		_, err := svc.Update(ctx, userID, workspaceID, uuid.New(), domain.ClientUpdate{
			ClientType: domain.Set(domain.ClientTypeCompany),
		})
		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindImmutableFieldUpdate, de.Kind)
		assert.Equal(t, "clientType", de.Field)
		assert.Empty(t, m.clients.Calls)
		assert.Empty(t, m.workspaces.Calls)
	})

	t.Run("changed email is checked against other clients", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)
		client, individual := storedIndividual(t, workspaceID, userID)
		m.clients.On("FindByID", ctx, client.ID()).Return(client, nil)
		m.clients.On("FindIndividualByClientID", ctx, client.ID()).Return(individual, nil)
		m.clients.On("ExistsByEmail", ctx, workspaceID, "taken@acme.ua", client.ID()).Return(true, nil)

		_, err := svc.Update(ctx, userID, workspaceID, client.ID(), domain.ClientUpdate{Email: domain.Set("taken@acme.ua")})
		assert.Equal(t, domain.KindDuplicateEntity, domain.KindOf(err))
		m.clients.AssertNotCalled(t, "UpdateFullClient", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unchanged identifiers are not re-checked", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)
		client, individual := storedIndividual(t, workspaceID, userID)
		m.clients.On("FindByID", ctx, client.ID()).Return(client, nil)
		m.clients.On("FindIndividualByClientID", ctx, client.ID()).Return(individual, nil)
		m.clients.On("UpdateFullClient", ctx, client, individual).Return(nil)

		view, err := svc.Update(ctx, userID, workspaceID, client.ID(), domain.ClientUpdate{
			Email:      domain.Set("IVAN@acme.ua"),
			MiddleName: domain.Set("Olehovych"),
			Note:       domain.Set("VIP"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Petrenko Ivan Olehovych", view.DisplayName)
		assert.Equal(t, "VIP", *view.Note)
		m.clients.AssertNotCalled(t, "ExistsByEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, []domain.EventType{domain.EventClientUpdated}, m.publisher.types())
	})

	t.Run("null clears a nullable field", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)
		client, individual := storedIndividual(t, workspaceID, userID)
		m.clients.On("FindByID", ctx, client.ID()).Return(client, nil)
		m.clients.On("FindIndividualByClientID", ctx, client.ID()).Return(individual, nil)
		m.clients.On("UpdateFullClient", ctx, client, individual).Return(nil)

		view, err := svc.Update(ctx, userID, workspaceID, client.ID(), domain.ClientUpdate{Email: domain.Null[string]()})
		require.NoError(t, err)
		assert.Nil(t, view.Email)
	})

	t.Run("company fields on an individual", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)
		client, individual := storedIndividual(t, workspaceID, userID)
		m.clients.On("FindByID", ctx, client.ID()).Return(client, nil)
		m.clients.On("FindIndividualByClientID", ctx, client.ID()).Return(individual, nil)

		_, err := svc.Update(ctx, userID, workspaceID, client.ID(), domain.ClientUpdate{CompanyName: domain.Set("Acme")})
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("client of another workspace", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)
		client, _ := storedIndividual(t, uuid.New(), userID)
		m.clients.On("FindByID", ctx, client.ID()).Return(client, nil)

		_, err := svc.Update(ctx, userID, workspaceID, client.ID(), domain.ClientUpdate{Note: domain.Set("x")})
		assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))
	})
}

func TestClientService_Delete(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()

	t.Run("user is forbidden", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		userID := uuid.New()
		m.member(workspaceID, userID, domain.RoleUser)

		err := svc.Delete(ctx, userID, workspaceID, uuid.New())
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
		assert.Empty(t, m.clients.Calls)
	})

	t.Run("admin deletes", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		adminID := uuid.New()
		m.member(workspaceID, adminID, domain.RoleAdmin)
		client, _ := storedIndividual(t, workspaceID, adminID)
		m.clients.On("FindByID", ctx, client.ID()).Return(client, nil)
		m.clients.On("SoftDelete", ctx, client.ID(), mock.AnythingOfType("time.Time")).Return(nil)

		require.NoError(t, svc.Delete(ctx, adminID, workspaceID, client.ID()))
		assert.True(t, client.IsDeleted())
		m.clients.AssertExpectations(t)
		assert.Equal(t, []domain.EventType{domain.EventClientDeleted}, m.publisher.types())
	})

	t.Run("deleting a deleted client is a no-op", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		adminID := uuid.New()
		m.member(workspaceID, adminID, domain.RoleAdmin)
		client, _ := storedIndividual(t, workspaceID, adminID)
		client.SoftDelete(time.Now())
		m.clients.On("FindByID", ctx, client.ID()).Return(client, nil)

		require.NoError(t, svc.Delete(ctx, adminID, workspaceID, client.ID()))
		m.clients.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, m.publisher.types())
	})

	t.Run("missing client", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		adminID := uuid.New()
		id := uuid.New()
		m.member(workspaceID, adminID, domain.RoleAdmin)
		m.clients.On("FindByID", ctx, id).Return(nil, nil)

		err := svc.Delete(ctx, adminID, workspaceID, id)
		assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))
	})
}

func TestClientService_HardDelete(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()

	t.Run("user is forbidden", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		userID := uuid.New()
		m.member(workspaceID, userID, domain.RoleUser)

		err := svc.HardDelete(ctx, userID, workspaceID, uuid.New())
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	})

	t.Run("admin removes", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		adminID := uuid.New()
		m.member(workspaceID, adminID, domain.RoleAdmin)
		client, _ := storedIndividual(t, workspaceID, adminID)
		m.clients.On("FindByID", ctx, client.ID()).Return(client, nil)
		m.clients.On("HardDelete", ctx, client.ID()).Return(nil)

		require.NoError(t, svc.HardDelete(ctx, adminID, workspaceID, client.ID()))
		m.clients.AssertExpectations(t)
	})
}

func TestClientService_GetListPageSize(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	userID := uuid.New()

	tests := []struct {
		name      string
		limit     int
		setting   int
		wantLimit int
	}{
		{name: "service default", limit: 0, setting: 0, wantLimit: 20},
		{name: "workspace setting", limit: 0, setting: 7, wantLimit: 7},
		{name: "explicit limit wins", limit: 5, setting: 7, wantLimit: 5},
		{name: "clamped to max", limit: 500, setting: 0, wantLimit: 100},
		{name: "workspace setting clamped", limit: 0, setting: 1000, wantLimit: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newClientServiceWithMocks()
			m.member(workspaceID, userID, domain.RoleUser)
			m.workspaces.On("GetByID", ctx, workspaceID).Return(&domain.Workspace{
				ID:       workspaceID,
				Settings: domain.WorkspaceSettings{ClientsPageSize: tt.setting},
			}, nil)
			want := domain.ClientFilter{Limit: tt.wantLimit, Search: "acme"}
			m.clients.On("FindAllByWorkspaceID", mock.Anything, workspaceID, want).Return(nil, nil)
			m.clients.On("CountAllByWorkspaceID", mock.Anything, workspaceID, want).Return(0, nil)

			list, err := svc.GetList(ctx, userID, workspaceID, ListQuery{Limit: tt.limit, Search: "  acme "})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, list.Limit)
			assert.NotNil(t, list.Items)
			assert.Empty(t, list.Items)
		})
	}

	t.Run("search too long", func(t *testing.T) {
		svc, m := newClientServiceWithMocks()
		m.member(workspaceID, userID, domain.RoleUser)
		long := make([]byte, 200)
		for i := range long {
			long[i] = 'a'
		}

		_, err := svc.GetList(ctx, userID, workspaceID, ListQuery{Search: string(long)})
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})
}

func TestClientService_GetDetails(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	userID := uuid.New()

	svc, m := newClientServiceWithMocks()
	m.member(workspaceID, userID, domain.RoleUser)
	client, individual := storedIndividual(t, workspaceID, userID)
	m.clients.On("FindByID", ctx, client.ID()).Return(client, nil)
	m.clients.On("FindIndividualByClientID", ctx, client.ID()).Return(individual, nil)

	view, err := svc.GetDetails(ctx, userID, workspaceID, client.ID())
	require.NoError(t, err)
	assert.Equal(t, client.ID(), view.ID)
	assert.Equal(t, "Petrenko Ivan", view.Individual.FullName)
	m.clients.AssertNotCalled(t, "FindCompanyByClientID", mock.Anything, mock.Anything)
}
