// Package repotest holds the behaviour every storage driver must share. The
// sqlite tests run it on every build; the postgres tests run it under the
// integration tag against a container.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Store is one driver's set of repositories over a freshly migrated database.
type Store struct {
	Users      domain.UserRepository
	Workspaces domain.WorkspaceRepository
	Clients    domain.ClientRepository
}

// Run executes the shared repository checks. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("workspaces", func(t *testing.T) { testWorkspaces(t, newStore(t)) })
	t.Run("clients", func(t *testing.T) { testClients(t, newStore(t)) })
	t.Run("client lifecycle", func(t *testing.T) { testClientLifecycle(t, newStore(t)) })
	t.Run("client listing", func(t *testing.T) { testClientListing(t, newStore(t)) })
}

var baseTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s Store, email string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.New(), Email: email, PasswordHash: "hash", CreatedAt: baseTime, UpdatedAt: baseTime}
	require.NoError(t, s.Users.Create(context.Background(), u))
	return u
}

func seedWorkspace(t *testing.T, s Store, owner uuid.UUID, slug string) *domain.Workspace {
	t.Helper()
	sl, err := domain.NewSlug(slug)
	require.NoError(t, err)
	ws, err := domain.NewWorkspace("Acme", sl, owner, baseTime)
	require.NoError(t, err)
	require.NoError(t, s.Workspaces.Create(context.Background(), ws, &domain.WorkspaceMember{
		WorkspaceID: ws.ID,
		UserID:      owner,
		Role:        domain.RoleOwner,
		Status:      domain.MemberActive,
		JoinedAt:    baseTime,
	}))
	return ws
}

func newIndividual(t *testing.T, workspaceID, creator uuid.UUID, email, last, tax string, at time.Time) (*domain.Client, *domain.Individual) {
	t.Helper()
	c, err := domain.NewClient(domain.ClientProps{
		WorkspaceID: workspaceID,
		Type:        domain.ClientTypeIndividual,
		Email:       email,
		CreatedBy:   creator,
	}, at)
	require.NoError(t, err)
	i, err := domain.NewIndividual(c.ID(), domain.IndividualProps{FirstName: "Ivan", LastName: last, TaxNumber: tax}, at)
	require.NoError(t, err)
	return c, i
}

func newCompany(t *testing.T, workspaceID, creator uuid.UUID, name, taxID string, at time.Time) (*domain.Client, *domain.Company) {
	t.Helper()
	c, err := domain.NewClient(domain.ClientProps{WorkspaceID: workspaceID, Type: domain.ClientTypeCompany, CreatedBy: creator}, at)
	require.NoError(t, err)
	co, err := domain.NewCompany(c.ID(), domain.CompanyProps{Name: name, TaxID: taxID})
	require.NoError(t, err)
	return c, co
}

func assertDuplicate(t *testing.T, err error, field string) {
	t.Helper()
	de, ok := domain.AsError(err)
	require.True(t, ok, "expected a domain error, got %v", err)
	assert.Equal(t, domain.KindDuplicateEntity, de.Kind)
	assert.Equal(t, field, de.Field)
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()
	u := seedUser(t, s, "ivan@acme.ua")

	got, err := s.Users.GetByEmail(ctx, "ivan@acme.ua")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, baseTime.Equal(got.CreatedAt))

	exists, err := s.Users.EmailExists(ctx, "ivan@acme.ua")
	require.NoError(t, err)
	assert.True(t, exists)

	missing, err := s.Users.GetByID(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, missing)

	dup := &domain.User{ID: uuid.New(), Email: "ivan@acme.ua", PasswordHash: "hash", CreatedAt: baseTime, UpdatedAt: baseTime}
	assertDuplicate(t, s.Users.Create(ctx, dup), "email")
}

func testWorkspaces(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner@acme.ua")
	member := seedUser(t, s, "member@acme.ua")
	ws := seedWorkspace(t, s, owner.ID, "acme-sales")

	got, err := s.Workspaces.GetBySlug(ctx, "acme-sales")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ws.ID, got.ID)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, domain.TierFree, got.SubscriptionTier)

	taken, err := s.Workspaces.SlugExists(ctx, "acme-sales")
	require.NoError(t, err)
	assert.True(t, taken)

	sl, _ := domain.NewSlug("acme-sales")
	dup, err := domain.NewWorkspace("Other", sl, member.ID, baseTime)
	require.NoError(t, err)
	err = s.Workspaces.Create(ctx, dup, &domain.WorkspaceMember{
		WorkspaceID: dup.ID, UserID: member.ID, Role: domain.RoleOwner, Status: domain.MemberActive, JoinedAt: baseTime,
	})
	assertDuplicate(t, err, "slug")

	ownerMembership, err := s.Workspaces.GetMember(ctx, ws.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, ownerMembership)
	assert.Equal(t, domain.RoleOwner, ownerMembership.Role)

	require.NoError(t, s.Workspaces.AddMember(ctx, &domain.WorkspaceMember{
		WorkspaceID: ws.ID, UserID: member.ID, Role: domain.RoleUser, Status: domain.MemberInvited, JoinedAt: baseTime,
	}))
	invited, err := s.Workspaces.ListByUserID(ctx, member.ID)
	require.NoError(t, err)
	assert.Empty(t, invited)

	require.NoError(t, s.Workspaces.UpdateMember(ctx, &domain.WorkspaceMember{
		WorkspaceID: ws.ID, UserID: member.ID, Role: domain.RoleAdmin, Status: domain.MemberActive, JoinedAt: baseTime,
	}))
	joined, err := s.Workspaces.ListByUserID(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, joined, 1)

	members, err := s.Workspaces.ListMembers(ctx, ws.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	ws.Settings.ClientsPageSize = 15
	ws.Name = "Acme Renamed"
	require.NoError(t, s.Workspaces.Update(ctx, ws))
	got, err = s.Workspaces.GetByID(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Renamed", got.Name)
	assert.Equal(t, 15, got.Settings.ClientsPageSize)

	require.NoError(t, s.Workspaces.SoftDelete(ctx, ws.ID, baseTime.Add(time.Hour)))
	got, err = s.Workspaces.GetByID(ctx, ws.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	inDeleted, err := s.Workspaces.GetMember(ctx, ws.ID, member.ID)
	require.NoError(t, err)
	require.NotNil(t, inDeleted)
	assert.True(t, inDeleted.InDeletedWorkspace())

	require.NoError(t, s.Workspaces.Restore(ctx, ws.ID))
	got, err = s.Workspaces.GetByID(ctx, ws.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)
	restored, err := s.Workspaces.GetMember(ctx, ws.ID, member.ID)
	require.NoError(t, err)
	assert.False(t, restored.InDeletedWorkspace())

	require.NoError(t, s.Workspaces.RemoveMember(ctx, ws.ID, member.ID))
	gone, err := s.Workspaces.GetMember(ctx, ws.ID, member.ID)
	assert.NoError(t, err)
	assert.Nil(t, gone)

	require.NoError(t, s.Workspaces.HardDelete(ctx, ws.ID))
	got, err = s.Workspaces.GetByID(ctx, ws.ID)
	assert.NoError(t, err)
	assert.Nil(t, got)
	ownerMembership, err = s.Workspaces.GetMember(ctx, ws.ID, owner.ID)
	assert.NoError(t, err)
	assert.Nil(t, ownerMembership)
}

func testClients(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner@acme.ua")
	ws := seedWorkspace(t, s, owner.ID, "acme-sales")

	issued := domain.NewDate(2015, time.March, 10)
	dob := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	c, err := domain.NewClient(domain.ClientProps{
		WorkspaceID: ws.ID,
		Type:        domain.ClientTypeIndividual,
		Email:       "ivan@acme.ua",
		Phone:       "0671234567",
		Address:     "Kyiv",
		CreatedBy:   owner.ID,
	}, baseTime)
	require.NoError(t, err)
	ind, err := domain.NewIndividual(c.ID(), domain.IndividualProps{
		FirstName:   "Ivan",
		LastName:    "Petrenko",
		MiddleName:  "Olehovych",
		DateOfBirth: &dob,
		TaxNumber:   "1234567890",
		IsFOP:       true,
		Passport:    domain.PassportInput{Series: "KK", Number: "123456", IssuedBy: "Kyiv", IssuedDate: &issued},
	}, baseTime)
	require.NoError(t, err)
	require.NoError(t, s.Clients.SaveFullClient(ctx, c, ind))

	got, err := s.Clients.FindByID(ctx, c.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.ClientTypeIndividual, got.Type())
	assert.Equal(t, "+380671234567", *got.Phone())
	assert.Equal(t, owner.ID, got.CreatedBy())
	assert.True(t, baseTime.Equal(got.CreatedAt()))

	gotInd, err := s.Clients.FindIndividualByClientID(ctx, c.ID())
	require.NoError(t, err)
	require.NotNil(t, gotInd)
	assert.Equal(t, "Petrenko Ivan Olehovych", gotInd.FullName())
	assert.True(t, gotInd.IsFOP)
	require.NotNil(t, gotInd.DateOfBirth)
	assert.True(t, dob.Equal(*gotInd.DateOfBirth))
	require.NotNil(t, gotInd.Passport)
	assert.Equal(t, "123456", gotInd.Passport.Number())
	assert.True(t, issued.Time.Equal(gotInd.Passport.IssuedDate()))

	noCompany, err := s.Clients.FindCompanyByClientID(ctx, c.ID())
	assert.NoError(t, err)
	assert.Nil(t, noCompany)

	// The unique indexes reject what the service-level checks would miss in a race.
	dupEmail, dupInd := newIndividual(t, ws.ID, owner.ID, "ivan@acme.ua", "Sydorenko", "", baseTime)
	assertDuplicate(t, s.Clients.SaveFullClient(ctx, dupEmail, dupInd), "email")

	dupTax, dupTaxInd := newIndividual(t, ws.ID, owner.ID, "", "Sydorenko", "1234567890", baseTime)
	assertDuplicate(t, s.Clients.SaveFullClient(ctx, dupTax, dupTaxInd), "taxNumber")

	co, company := newCompany(t, ws.ID, owner.ID, "Acme", "12345678", baseTime)
	require.NoError(t, s.Clients.SaveFullClient(ctx, co, company))
	co2, company2 := newCompany(t, ws.ID, owner.ID, "Acme Two", "12345678", baseTime)
	assertDuplicate(t, s.Clients.SaveFullClient(ctx, co2, company2), "taxId")

	exists, err := s.Clients.ExistsByEmail(ctx, ws.ID, "ivan@acme.ua", uuid.Nil)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.Clients.ExistsByEmail(ctx, ws.ID, "ivan@acme.ua", c.ID())
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = s.Clients.ExistsByPhone(ctx, ws.ID, "+380671234567", uuid.Nil)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.Clients.ExistsByTaxID(ctx, ws.ID, "12345678", uuid.Nil)
	require.NoError(t, err)
	assert.True(t, exists)

	// Update rewrites both rows and can clear the passport.
	require.NoError(t, c.Update(domain.ClientPatch{Note: domain.Set("VIP")}, baseTime.Add(time.Hour)))
	require.NoError(t, ind.Update(domain.IndividualPatch{Passport: domain.Null[domain.PassportInput]()}, baseTime))
	require.NoError(t, s.Clients.UpdateFullClient(ctx, c, ind))

	got, err = s.Clients.FindByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, "VIP", *got.Note())
	assert.True(t, baseTime.Add(time.Hour).Equal(got.UpdatedAt()))
	gotInd, err = s.Clients.FindIndividualByClientID(ctx, c.ID())
	require.NoError(t, err)
	assert.Nil(t, gotInd.Passport)

	ghost, ghostInd := newIndividual(t, ws.ID, owner.ID, "", "Ghost", "", baseTime)
	err = s.Clients.UpdateFullClient(ctx, ghost, ghostInd)
	assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))
}

func testClientLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner@acme.ua")
	ws := seedWorkspace(t, s, owner.ID, "acme-sales")

	first, firstInd := newIndividual(t, ws.ID, owner.ID, "ivan@acme.ua", "Petrenko", "1234567890", baseTime)
	require.NoError(t, s.Clients.SaveFullClient(ctx, first, firstInd))

	deletedAt := baseTime.Add(time.Hour)
	require.NoError(t, s.Clients.SoftDelete(ctx, first.ID(), deletedAt))
	got, err := s.Clients.FindByID(ctx, first.ID())
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt())
	assert.True(t, deletedAt.Equal(*got.DeletedAt()))

	exists, err := s.Clients.ExistsByEmail(ctx, ws.ID, "ivan@acme.ua", uuid.Nil)
	require.NoError(t, err)
	assert.False(t, exists)

	// Both identifiers are free again once the holder is deleted.
	second, secondInd := newIndividual(t, ws.ID, owner.ID, "ivan@acme.ua", "Sydorenko", "1234567890", baseTime)
	require.NoError(t, s.Clients.SaveFullClient(ctx, second, secondInd))

	err = s.Clients.Restore(ctx, first.ID(), baseTime.Add(2*time.Hour))
	assertDuplicate(t, err, "email")
	de, _ := domain.AsError(err)
	require.NotNil(t, de)
	assert.Equal(t, "ivan@acme.ua", de.Value)
	assert.Equal(t, "client", de.Entity)

	require.NoError(t, s.Clients.HardDelete(ctx, second.ID()))
	gone, err := s.Clients.FindIndividualByClientID(ctx, second.ID())
	assert.NoError(t, err)
	assert.Nil(t, gone)

	restoredAt := baseTime.Add(3 * time.Hour)
	require.NoError(t, s.Clients.Restore(ctx, first.ID(), restoredAt))
	got, err = s.Clients.FindByID(ctx, first.ID())
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt())
	assert.True(t, restoredAt.Equal(got.UpdatedAt()))

	// Other workspaces keep their own namespace.
	otherWS := seedWorkspace(t, s, owner.ID, "acme-other")
	other, otherInd := newIndividual(t, otherWS.ID, owner.ID, "ivan@acme.ua", "Petrenko", "1234567890", baseTime)
	assert.NoError(t, s.Clients.SaveFullClient(ctx, other, otherInd))
}

func testClientListing(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner@acme.ua")
	ws := seedWorkspace(t, s, owner.ID, "acme-sales")

	for i, last := range []string{"Petrenko", "Kovalenko", "Shevchenko"} {
		c, ind := newIndividual(t, ws.ID, owner.ID, "", last, "", baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Clients.SaveFullClient(ctx, c, ind))
	}
	co, company := newCompany(t, ws.ID, owner.ID, "Enko_Trade 50%", "", baseTime.Add(time.Hour))
	require.NoError(t, s.Clients.SaveFullClient(ctx, co, company))

	all, err := s.Clients.FindAllByWorkspaceID(ctx, ws.ID, domain.ClientFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, co.ID(), all[0].Client.ID(), "newest first")
	assert.Equal(t, "Enko_Trade 50%", all[0].Details.DisplayName())

	filter := domain.ClientFilter{Limit: 10, Search: "enko"}
	matched, err := s.Clients.FindAllByWorkspaceID(ctx, ws.ID, filter)
	require.NoError(t, err)
	assert.Len(t, matched, 4)
	total, err := s.Clients.CountAllByWorkspaceID(ctx, ws.ID, filter)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	for search, want := range map[string]int{"_": 1, "50%": 1, "KOVAL": 1, "nobody": 0} {
		total, err := s.Clients.CountAllByWorkspaceID(ctx, ws.ID, domain.ClientFilter{Limit: 10, Search: search})
		require.NoError(t, err)
		assert.Equal(t, want, total, search)
	}

	page, err := s.Clients.FindAllByWorkspaceID(ctx, ws.ID, domain.ClientFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Kovalenko", page[0].Details.(*domain.Individual).LastName)

	require.NoError(t, s.Clients.SoftDelete(ctx, co.ID(), baseTime.Add(2*time.Hour)))
	deleted, err := s.Clients.FindAllByWorkspaceID(ctx, ws.ID, domain.ClientFilter{Limit: 10, OnlyDeleted: true})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, co.ID(), deleted[0].Client.ID())

	active, err := s.Clients.CountAllByWorkspaceID(ctx, ws.ID, domain.ClientFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, active)

	cyr, cyrInd := newIndividual(t, ws.ID, owner.ID, "", "Петренко", "", baseTime.Add(3*time.Hour))
	require.NoError(t, s.Clients.SaveFullClient(ctx, cyr, cyrInd))
	for _, search := range []string{"Петренко", "петренко", "ПЕТРЕНКО", "етрен"} {
		found, err := s.Clients.FindAllByWorkspaceID(ctx, ws.ID, domain.ClientFilter{Limit: 10, Search: search})
		require.NoError(t, err)
		require.Len(t, found, 1, search)
		assert.Equal(t, cyr.ID(), found[0].Client.ID(), search)
	}
}
