package query

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "directory/pkg/domain-errors"
)

type city struct {
	ID   int64
	Name string
}

// sliceSource is a minimal Source that records the criteria it receives.
type sliceSource struct {
	rows     []city
	last     Criteria
	findHits int
	err      error
}

func (s *sliceSource) match(c Criteria) []city {
	var out []city
	for _, r := range s.rows {
		if c.HasSearch() && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(c.Search)) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *sliceSource) Count(_ context.Context, c Criteria) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return len(s.match(c)), nil
}

func (s *sliceSource) Find(_ context.Context, c Criteria) ([]city, error) {
	s.last = c
	s.findHits++
	rows := s.match(c)
	end := c.Offset + c.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[c.Offset:end], nil
}

type QuerySuite struct {
	suite.Suite
	src   *sliceSource
	pager Pager
}

func TestQuerySuite(t *testing.T) {
	suite.Run(t, new(QuerySuite))
}

func (s *QuerySuite) SetupTest() {
	s.src = &sliceSource{}
	for i := int64(250); i >= 1; i-- {
		name := "Town"
		if i%10 == 0 {
			name = "Saint-Malo"
		}
		s.src.rows = append(s.src.rows, city{ID: i, Name: name})
	}
	s.pager = NewPager(DefaultMaxPageSize)
}

func ptr(s string) *string { return &s }

func (s *QuerySuite) TestRejectsNonPositivePagination() {
	ctx := context.Background()
	for _, req := range []Request{
		{PageNumber: 0, PageSize: 10},
		{PageNumber: 1, PageSize: 0},
		{PageNumber: -1, PageSize: -1},
	} {
		_, err := Execute[city](ctx, s.pager, s.src, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), "request %+v", req)
	}
	s.Zero(s.src.findHits)
}

func (s *QuerySuite) TestClampsPageSize() {
	page, err := Execute[city](context.Background(), s.pager, s.src, Request{PageNumber: 1, PageSize: 500})
	s.Require().NoError(err)
	s.Len(page.Items, DefaultMaxPageSize)
	s.Equal(DefaultMaxPageSize, page.PageSize)
	s.Equal(250, page.TotalCount)
}

func (s *QuerySuite) TestPagesCoverTotalExactlyOnce() {
	ctx := context.Background()
	for _, size := range []int{1, 7, 33, 100} {
		seen := map[int64]bool{}
		total := -1
		for n := 1; ; n++ {
			page, err := Execute[city](ctx, s.pager, s.src, Request{PageNumber: n, PageSize: size})
			s.Require().NoError(err)
			s.LessOrEqual(len(page.Items), size)
			total = page.TotalCount
			if len(page.Items) == 0 {
				break
			}
			for _, it := range page.Items {
				s.False(seen[it.ID], "duplicate id %d", it.ID)
				seen[it.ID] = true
			}
		}
		s.Equal(total, len(seen), "page size %d", size)
	}
}

func (s *QuerySuite) TestDefaultOrderIsIDAscending() {
	_, err := Execute[city](context.Background(), s.pager, s.src, Request{PageNumber: 2, PageSize: 10})
	s.Require().NoError(err)
	s.Equal([]Order{{Field: "id"}}, s.src.last.OrderBy)
	s.Equal(10, s.src.last.Offset)
	s.Equal(10, s.src.last.Limit)
}

func (s *QuerySuite) TestExplicitOrderIsKept() {
	order := []Order{{Field: "name", Desc: true}}
	_, err := Execute[city](context.Background(), s.pager, s.src, Request{PageNumber: 1, PageSize: 5, OrderBy: order})
	s.Require().NoError(err)
	s.Equal(order, s.src.last.OrderBy)
}

func (s *QuerySuite) TestSearch() {
	ctx := context.Background()

	s.Run("filters and counts before paging", func() {
		page, err := Execute[city](ctx, s.pager, s.src, Request{SearchTerm: ptr("  saint "), PageNumber: 1, PageSize: 10})
		s.Require().NoError(err)
		s.Equal(25, page.TotalCount)
		s.Len(page.Items, 10)
		s.Equal("saint", s.src.last.Search)
	})

	s.Run("blank search term is a validation error", func() {
		_, err := Execute[city](ctx, s.pager, s.src, Request{SearchTerm: ptr("   "), PageNumber: 1, PageSize: 10})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("nil search term returns everything", func() {
		page, err := Execute[city](ctx, s.pager, s.src, Request{PageNumber: 1, PageSize: 10})
		s.Require().NoError(err)
		s.Equal(250, page.TotalCount)
		s.False(s.src.last.HasSearch())
	})
}

func (s *QuerySuite) TestPageBeyondEndSkipsFind() {
	hits := s.src.findHits
	page, err := Execute[city](context.Background(), s.pager, s.src, Request{PageNumber: 99, PageSize: 10})
	s.Require().NoError(err)
	s.Empty(page.Items)
	s.NotNil(page.Items)
	s.Equal(250, page.TotalCount)
	s.Equal(hits, s.src.findHits)
}

func (s *QuerySuite) TestSourceErrorsPropagate() {
	boom := errors.New("connection reset")
	s.src.err = boom
	_, err := Execute[city](context.Background(), s.pager, s.src, Request{PageNumber: 1, PageSize: 10})
	s.ErrorIs(err, boom)
	s.False(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *QuerySuite) TestHugePageNumberRejected() {
	_, err := Execute[city](context.Background(), s.pager, s.src, Request{PageNumber: 1 << 40, PageSize: 100})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *QuerySuite) TestNewPagerDefaults() {
	s.Equal(DefaultMaxPageSize, NewPager(0).MaxPageSize())
	s.Equal(20, NewPager(20).MaxPageSize())
	s.Equal(DefaultMaxPageSize, Pager{}.MaxPageSize())
}
