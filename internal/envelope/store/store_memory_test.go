package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"signature-service/internal/envelope/models"
	id "signature-service/pkg/domain"
	"signature-service/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx    context.Context
	now    time.Time
	store  *InMemoryStore
	tenant id.TenantID
	owner  id.UserID
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	s.store = NewInMemory()
	s.tenant = id.TenantID(uuid.New())
	s.owner = id.UserID(uuid.New())
}

func (s *InMemoryStoreSuite) newEnvelope(createdAt time.Time, expiresAt *time.Time) *models.Envelope {
	e, err := models.NewEnvelope(id.EnvelopeID(uuid.New()), s.tenant, s.owner, "NDA", "", models.SigningOrderOwnerFirst, expiresAt, createdAt)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, e))
	return e
}

func (s *InMemoryStoreSuite) TestCreateAndFindReturnsCopies() {
	e := s.newEnvelope(s.now, nil)

	got, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	got.Title = "mutated"

	again, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal("NDA", again.Title)

	s.ErrorIs(s.store.Create(s.ctx, e), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, id.EnvelopeID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdateChecksVersion() {
	e := s.newEnvelope(s.now, nil)

	first, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	second, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)

	first.Title = "first"
	s.Require().NoError(s.store.Update(s.ctx, first))
	s.Equal(2, first.Version)

	second.Title = "second"
	s.ErrorIs(s.store.Update(s.ctx, second), sentinel.ErrConflict)

	got, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal("first", got.Title)
}

func (s *InMemoryStoreSuite) TestListByOwnerFiltersAndOrders() {
	older := s.newEnvelope(s.now, nil)
	newer := s.newEnvelope(s.now.Add(time.Hour), nil)
	other, err := models.NewEnvelope(id.EnvelopeID(uuid.New()), s.tenant, id.UserID(uuid.New()), "Other", "", models.SigningOrderOwnerFirst, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, other))

	list, err := s.store.ListByOwner(s.ctx, s.tenant, s.owner, models.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)
	s.Equal(older.ID, list[1].ID)

	draft := models.StatusDraft
	list, err = s.store.ListByOwner(s.ctx, s.tenant, s.owner, models.ListFilter{Status: &draft, Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(older.ID, list[0].ID)

	sent := models.StatusReadyForSignature
	list, err = s.store.ListByOwner(s.ctx, s.tenant, s.owner, models.ListFilter{Status: &sent})
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *InMemoryStoreSuite) TestListOverdue() {
	soon := s.now.Add(time.Hour)
	later := s.now.Add(48 * time.Hour)
	due := s.newEnvelope(s.now, &soon)
	notDue := s.newEnvelope(s.now, &later)
	draft := s.newEnvelope(s.now, &soon)

	for _, e := range []*models.Envelope{due, notDue} {
		e.Status = models.StatusReadyForSignature
		s.Require().NoError(s.store.Update(s.ctx, e))
	}

	ids, err := s.store.ListOverdue(s.ctx, s.now.Add(2*time.Hour), 10)
	s.Require().NoError(err)
	s.Equal([]id.EnvelopeID{due.ID}, ids)
	s.NotContains(ids, draft.ID)
}
