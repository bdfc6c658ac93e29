package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"directory/internal/directory/models"
	"directory/internal/directory/query"
	"directory/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx context.Context
	db  *DB
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = New()
}

func (s *MemoryStoreSuite) seedRefs() (models.Location, models.Service) {
	loc, err := s.db.Locations().Insert(s.ctx, models.Location{City: "Nantes"})
	s.Require().NoError(err)
	svc, err := s.db.Services().Insert(s.ctx, models.Service{Name: "Accounting"})
	s.Require().NoError(err)
	return loc, svc
}

func (s *MemoryStoreSuite) worker(n int, loc models.Location, svc models.Service) models.Worker {
	return models.Worker{
		FirstName:   fmt.Sprintf("First%d", n),
		LastName:    fmt.Sprintf("Last%d", n),
		Email:       fmt.Sprintf("w%d@example.com", n),
		PhoneFixed:  "02 40 00 00 00",
		PhoneMobile: "+33 6 00 00 00",
		LocationID:  loc.ID,
		ServiceID:   svc.ID,
	}
}

func (s *MemoryStoreSuite) TestInsertAssignsSequentialIDs() {
	a, err := s.db.Locations().Insert(s.ctx, models.Location{City: "Paris"})
	s.Require().NoError(err)
	b, err := s.db.Locations().Insert(s.ctx, models.Location{City: "Lyon"})
	s.Require().NoError(err)

	s.Equal(int64(1), a.ID)
	s.Equal(int64(2), b.ID)
	got, err := s.db.Locations().FindByID(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal("Lyon", got.City)
}

func (s *MemoryStoreSuite) TestNaturalKeyIsCaseAndSpaceInsensitive() {
	_, err := s.db.Services().Insert(s.ctx, models.Service{Name: "Sales"})
	s.Require().NoError(err)

	_, err = s.db.Services().Insert(s.ctx, models.Service{Name: "  sALES "})
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	exists, err := s.db.Services().ExistsByNaturalKey(s.ctx, " SALES", 0)
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.db.Services().ExistsByNaturalKey(s.ctx, "sales", 1)
	s.Require().NoError(err)
	s.False(exists, "the row itself is excluded")
}

func (s *MemoryStoreSuite) TestWorkerReferencesMustExist() {
	loc, svc := s.seedRefs()
	w := s.worker(1, loc, svc)
	w.ServiceID = 99

	_, err := s.db.Workers().Insert(s.ctx, w)
	s.ErrorIs(err, sentinel.ErrDangling)

	w.ServiceID = svc.ID
	created, err := s.db.Workers().Insert(s.ctx, w)
	s.Require().NoError(err)

	created.LocationID = 42
	s.ErrorIs(s.db.Workers().Update(s.ctx, created), sentinel.ErrDangling)
}

func (s *MemoryStoreSuite) TestUpdateAndDeleteMissingRow() {
	s.ErrorIs(s.db.Locations().Update(s.ctx, models.Location{ID: 7, City: "Brest"}), sentinel.ErrNotFound)
	s.ErrorIs(s.db.Locations().Delete(s.ctx, 7), sentinel.ErrNotFound)
	_, err := s.db.Locations().FindByID(s.ctx, 7)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestDeleteBlockedByDependents() {
	loc, svc := s.seedRefs()
	w, err := s.db.Workers().Insert(s.ctx, s.worker(1, loc, svc))
	s.Require().NoError(err)

	n, err := s.db.Locations().CountDependents(s.ctx, loc.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.ErrorIs(s.db.Locations().Delete(s.ctx, loc.ID), sentinel.ErrReferenced)
	s.ErrorIs(s.db.Services().Delete(s.ctx, svc.ID), sentinel.ErrReferenced)

	s.Require().NoError(s.db.Workers().Delete(s.ctx, w.ID))
	s.NoError(s.db.Locations().Delete(s.ctx, loc.ID))
}

func (s *MemoryStoreSuite) TestFindFiltersSearchesSortsAndPages() {
	loc, svc := s.seedRefs()
	other, err := s.db.Locations().Insert(s.ctx, models.Location{City: "Rennes"})
	s.Require().NoError(err)
	for i := 1; i <= 12; i++ {
		w := s.worker(i, loc, svc)
		if i%3 == 0 {
			w.LocationID = other.ID
		}
		_, err := s.db.Workers().Insert(s.ctx, w)
		s.Require().NoError(err)
	}
	repo := s.db.Workers()

	s.Run("equals filter", func() {
		c := query.Criteria{Equals: []query.Equal{{Field: models.FieldLocationID, Value: other.ID}}, Limit: 100}
		n, err := repo.Count(s.ctx, c)
		s.Require().NoError(err)
		s.Equal(4, n)
	})

	s.Run("search is a case-insensitive substring", func() {
		c := query.Criteria{Search: "W1", Limit: 100, OrderBy: []query.Order{{Field: models.FieldID}}}
		rows, err := repo.Find(s.ctx, c)
		s.Require().NoError(err)
		ids := make([]int64, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		s.Equal([]int64{1, 10, 11, 12}, ids)
	})

	s.Run("descending order with offset and limit", func() {
		c := query.Criteria{OrderBy: []query.Order{{Field: models.FieldID, Desc: true}}, Offset: 2, Limit: 3}
		rows, err := repo.Find(s.ctx, c)
		s.Require().NoError(err)
		s.Require().Len(rows, 3)
		s.Equal(int64(10), rows[0].ID)
		s.Equal(int64(8), rows[2].ID)
	})

	s.Run("offset past the end", func() {
		rows, err := repo.Find(s.ctx, query.Criteria{Offset: 50, Limit: 10})
		s.Require().NoError(err)
		s.Empty(rows)
	})

	s.Run("unknown fields are rejected", func() {
		_, err := repo.Find(s.ctx, query.Criteria{OrderBy: []query.Order{{Field: "salary"}}, Limit: 1})
		s.Error(err)
		_, err = repo.Count(s.ctx, query.Criteria{Equals: []query.Equal{{Field: "salary", Value: 1}}})
		s.Error(err)
	})
}

func (s *MemoryStoreSuite) TestRunInTxRollsBackEveryTable() {
	loc, svc := s.seedRefs()
	w, err := s.db.Workers().Insert(s.ctx, s.worker(1, loc, svc))
	s.Require().NoError(err)
	boom := errors.New("abort")

	err = s.db.RunInTx(s.ctx, func(ctx context.Context) error {
		w.FirstName = "Changed"
		if err := s.db.Workers().Update(ctx, w); err != nil {
			return err
		}
		if _, err := s.db.Locations().Insert(ctx, models.Location{City: "Lille"}); err != nil {
			return err
		}
		return s.db.RunInTx(ctx, func(context.Context) error { return boom })
	})
	s.ErrorIs(err, boom)

	got, err := s.db.Workers().FindByID(s.ctx, w.ID)
	s.Require().NoError(err)
	s.Equal("First1", got.FirstName)
	exists, err := s.db.Locations().ExistsByNaturalKey(s.ctx, "Lille", 0)
	s.Require().NoError(err)
	s.False(exists)

	next, err := s.db.Locations().Insert(s.ctx, models.Location{City: "Lille"})
	s.Require().NoError(err)
	s.Equal(int64(2), next.ID, "id sequence is restored too")
}

func (s *MemoryStoreSuite) TestRunInTxCommits() {
	err := s.db.RunInTx(s.ctx, func(ctx context.Context) error {
		_, err := s.db.Services().Insert(ctx, models.Service{Name: "Legal"})
		return err
	})
	s.Require().NoError(err)

	exists, err := s.db.Services().ExistsByID(s.ctx, 1)
	s.Require().NoError(err)
	s.True(exists)
}
