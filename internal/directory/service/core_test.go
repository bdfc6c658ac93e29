package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"directory/internal/directory/cache"
	"directory/internal/directory/models"
	dErrors "directory/pkg/domain-errors"
)

// =============================================================================
// CRUD core over the in-memory store and cache
// =============================================================================

type CoreSuite struct {
	suite.Suite
	ctx context.Context
	f   *fixture
	loc models.Location
	svc models.Service
}

func TestCoreSuite(t *testing.T) {
	suite.Run(t, new(CoreSuite))
}

func (s *CoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.f = newFixture()
	s.loc = s.f.location(s.ctx, "Rennes")
	s.svc = s.f.service(s.ctx, "Accounting")
	s.f.events.Reset()
}

func (s *CoreSuite) TestDuplicateNaturalKeyIsConflict() {
	s.Run("location city", func() {
		_, err := s.f.locations.Create(s.ctx, models.Location{City: "  rENNES "})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
	})
	s.Run("service name", func() {
		_, err := s.f.services.Create(s.ctx, models.Service{Name: "ACCOUNTING"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
	})
	s.Run("worker email", func() {
		s.f.worker(s.ctx, 1, s.loc.ID, s.svc.ID)
		dup := newWorker(2, s.loc.ID, s.svc.ID)
		dup.Email = " JEAN1@example.com"
		_, err := s.f.workers.Create(s.ctx, dup)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
	})
}

func (s *CoreSuite) TestCreateTrimsAndAssignsID() {
	l, err := s.f.locations.Create(s.ctx, models.Location{ID: 99, City: "  Brest "})
	s.Require().NoError(err)
	s.Equal("Brest", l.City)
	s.Equal(int64(2), l.ID)
	s.Equal([]string{"directory.location.created"}, s.f.events.Types())
}

func (s *CoreSuite) TestCreateValidatesFields() {
	w := newWorker(1, s.loc.ID, s.svc.ID)
	w.PhoneMobile = "abc"

	_, err := s.f.workers.Create(s.ctx, w)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "phoneMobile")
	s.Contains(err.Error(), "'abc'")

	_, err = s.f.locations.Create(s.ctx, models.Location{City: "   "})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(s.f.events.Types())
}

func (s *CoreSuite) TestCreateWorkerRequiresExistingReferences() {
	_, err := s.f.workers.Create(s.ctx, newWorker(1, 42, s.svc.ID))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal("Location with ID 42 not found", err.Error())

	_, err = s.f.workers.Create(s.ctx, newWorker(1, s.loc.ID, 7))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal("Service with ID 7 not found", err.Error())
}

func (s *CoreSuite) TestCreateWorkerCheckOrder() {
	s.f.worker(s.ctx, 1, s.loc.ID, s.svc.ID)

	s.Run("duplicate email wins over a missing location", func() {
		_, err := s.f.workers.Create(s.ctx, newWorker(1, 999, s.svc.ID))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
	s.Run("missing service is reported before missing location", func() {
		_, err := s.f.workers.Create(s.ctx, newWorker(2, 999, 888))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal("Service with ID 888 not found", err.Error())
	})
}

func (s *CoreSuite) TestRoundTripThroughCache() {
	created := s.f.worker(s.ctx, 1, s.loc.ID, s.svc.ID)

	for range 2 {
		view, err := s.f.workers.GetByID(s.ctx, created.ID, "", WorkerFilter{})
		s.Require().NoError(err)
		s.Require().NotNil(view.Entity)
		s.Equal(created, *view.Entity)
	}
	hit, err := s.f.cache.TryGet(s.ctx, cache.EntityKey("worker", created.ID), &models.Worker{})
	s.Require().NoError(err)
	s.True(hit)
}

func (s *CoreSuite) TestUpdateInvalidatesEntityAndLists() {
	w := s.f.worker(s.ctx, 1, s.loc.ID, s.svc.ID)
	_, err := s.f.workers.GetByID(s.ctx, w.ID, "", WorkerFilter{})
	s.Require().NoError(err)
	term := "Dupont"
	list, err := s.f.workers.GetFiltered(s.ctx, ListParams{SearchTerm: &term, PageNumber: 1, PageSize: 10}, WorkerFilter{})
	s.Require().NoError(err)
	s.Equal(1, list.TotalCount)

	w.LastName = "Martin"
	s.Require().NoError(s.f.workers.Update(s.ctx, w.ID, w))

	view, err := s.f.workers.GetByID(s.ctx, w.ID, "lastName", WorkerFilter{})
	s.Require().NoError(err)
	s.Equal("Martin", view.Record["lastName"])

	list, err = s.f.workers.GetFiltered(s.ctx, ListParams{SearchTerm: &term, PageNumber: 1, PageSize: 10}, WorkerFilter{})
	s.Require().NoError(err)
	s.Zero(list.TotalCount, "list pages cached before the update are gone")
}

func (s *CoreSuite) TestCreateInvalidatesLists() {
	first, err := s.f.locations.GetFiltered(s.ctx, ListParams{PageNumber: 1, PageSize: 10})
	s.Require().NoError(err)
	s.Equal(1, first.TotalCount)

	s.f.location(s.ctx, "Vannes")

	second, err := s.f.locations.GetFiltered(s.ctx, ListParams{PageNumber: 1, PageSize: 10})
	s.Require().NoError(err)
	s.Equal(2, second.TotalCount)
}

func (s *CoreSuite) TestUpdateRules() {
	w := s.f.worker(s.ctx, 1, s.loc.ID, s.svc.ID)
	other := s.f.worker(s.ctx, 2, s.loc.ID, s.svc.ID)

	s.Run("id mismatch", func() {
		err := s.f.workers.Update(s.ctx, other.ID, w)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("non-positive id", func() {
		err := s.f.workers.Update(s.ctx, 0, w)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("keeping its own email is fine", func() {
		w.LastName = "Martin"
		s.NoError(s.f.workers.Update(s.ctx, w.ID, w))
	})
	s.Run("taking another worker's email conflicts", func() {
		taken := w
		taken.Email = "JEAN2@example.com"
		err := s.f.workers.Update(s.ctx, w.ID, taken)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
	s.Run("unknown service", func() {
		moved := w
		moved.ServiceID = 404
		err := s.f.workers.Update(s.ctx, w.ID, moved)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
	s.Run("row deleted concurrently", func() {
		s.Require().NoError(s.f.workers.Delete(s.ctx, other.ID))
		err := s.f.workers.Update(s.ctx, other.ID, other)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CoreSuite) TestDeleteWithDependents() {
	w := s.f.worker(s.ctx, 1, s.loc.ID, s.svc.ID)

	err := s.f.locations.Delete(s.ctx, s.loc.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal("cannot delete a location linked to workers", err.Error())
	err = s.f.services.Delete(s.ctx, s.svc.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	s.Require().NoError(s.f.workers.Delete(s.ctx, w.ID))
	s.NoError(s.f.locations.Delete(s.ctx, s.loc.ID))
	s.NoError(s.f.services.Delete(s.ctx, s.svc.ID))

	err = s.f.locations.Delete(s.ctx, s.loc.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CoreSuite) TestDeletedEntityIsNoLongerServedFromCache() {
	l := s.f.location(s.ctx, "Quimper")
	_, err := s.f.locations.GetByID(s.ctx, l.ID, "")
	s.Require().NoError(err)

	s.Require().NoError(s.f.locations.Delete(s.ctx, l.ID))

	_, err = s.f.locations.GetByID(s.ctx, l.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CoreSuite) TestProjection() {
	s.Run("known field only", func() {
		view, err := s.f.locations.GetByID(s.ctx, s.loc.ID, "City")
		s.Require().NoError(err)
		raw, err := json.Marshal(view)
		s.Require().NoError(err)
		s.JSONEq(`{"city":"Rennes"}`, string(raw))
	})
	s.Run("unknown field", func() {
		_, err := s.f.locations.GetByID(s.ctx, s.loc.ID, "NotAField")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "notafield")

		_, err = s.f.locations.GetFiltered(s.ctx, ListParams{Fields: "city,NotAField", PageNumber: 1, PageSize: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("list projection", func() {
		res, err := s.f.locations.GetFiltered(s.ctx, ListParams{Fields: " id , CITY", PageNumber: 1, PageSize: 10})
		s.Require().NoError(err)
		raw, err := json.Marshal(res)
		s.Require().NoError(err)
		s.JSONEq(`{"items":[{"city":"Rennes","id":1}],"total_count":1,"page_number":1,"page_size":10}`, string(raw))
	})
}

func (s *CoreSuite) TestPagination() {
	for i := 1; i <= 130; i++ {
		s.f.worker(s.ctx, i, s.loc.ID, s.svc.ID)
	}

	s.Run("pages cover the total", func() {
		seen := map[int64]bool{}
		for p := 1; p <= 14; p++ {
			res, err := s.f.workers.GetFiltered(s.ctx, ListParams{PageNumber: p, PageSize: 10}, WorkerFilter{})
			s.Require().NoError(err)
			s.Equal(130, res.TotalCount)
			s.LessOrEqual(res.Items.Len(), 10)
			for _, w := range res.Items.Full {
				s.False(seen[w.ID])
				seen[w.ID] = true
			}
		}
		s.Len(seen, 130)
	})
	s.Run("oversized pages are capped", func() {
		res, err := s.f.workers.GetFiltered(s.ctx, ListParams{PageNumber: 1, PageSize: 500}, WorkerFilter{})
		s.Require().NoError(err)
		s.Equal(100, res.Items.Len())
		s.Equal(100, res.PageSize)
	})
	s.Run("zero page number or size", func() {
		_, err := s.f.workers.GetFiltered(s.ctx, ListParams{PageNumber: 0, PageSize: 10}, WorkerFilter{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.f.workers.GetFiltered(s.ctx, ListParams{PageNumber: 1, PageSize: 0}, WorkerFilter{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("blank search term", func() {
		_, err := s.f.workers.GetFiltered(s.ctx, ListParams{SearchTerm: ptr("  "), PageNumber: 1, PageSize: 10}, WorkerFilter{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *CoreSuite) TestWorkerFilters() {
	other := s.f.location(s.ctx, "Lorient")
	a := s.f.worker(s.ctx, 1, s.loc.ID, s.svc.ID)
	s.f.worker(s.ctx, 2, other.ID, s.svc.ID)
	s.f.worker(s.ctx, 3, other.ID, s.svc.ID)

	res, err := s.f.workers.GetFiltered(s.ctx, ListParams{PageNumber: 1, PageSize: 10}, WorkerFilter{LocationID: &other.ID})
	s.Require().NoError(err)
	s.Equal(2, res.TotalCount)

	res, err = s.f.workers.GetFiltered(s.ctx, ListParams{PageNumber: 1, PageSize: 10}, WorkerFilter{LocationID: &s.loc.ID, ServiceID: &s.svc.ID})
	s.Require().NoError(err)
	s.Equal(1, res.TotalCount)

	_, err = s.f.workers.GetByID(s.ctx, a.ID, "", WorkerFilter{LocationID: &other.ID})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.f.workers.GetFiltered(s.ctx, ListParams{PageNumber: 1, PageSize: 10}, WorkerFilter{ServiceID: ptr(int64(0))})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *CoreSuite) TestExistence() {
	ok, err := s.f.locations.ExistsByID(s.ctx, s.loc.ID)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.f.locations.ExistsByID(s.ctx, 999)
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.f.locations.ExistsByID(s.ctx, -1)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	ok, err = s.f.services.ExistsByNaturalKey(s.ctx, " accounting ")
	s.Require().NoError(err)
	s.True(ok)

	_, err = s.f.services.ExistsByNaturalKey(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *CoreSuite) TestWritesPublishEvents() {
	w := s.f.worker(s.ctx, 1, s.loc.ID, s.svc.ID)
	w.LastName = "Martin"
	s.Require().NoError(s.f.workers.Update(s.ctx, w.ID, w))
	s.Require().NoError(s.f.workers.Delete(s.ctx, w.ID))

	s.Equal([]string{
		"directory.worker.created",
		"directory.worker.updated",
		"directory.worker.deleted",
	}, s.f.events.Types())
	s.Equal(w.ID, s.f.events.Events()[2].EntityID)
}
