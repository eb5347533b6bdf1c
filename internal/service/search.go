package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// ErrNoSearch is returned when the client has no search session.
var ErrNoSearch = errors.New("no active search")

// StartSearch fetches the token list above minLiquidity and opens a new
// session, replacing any previous one.
func (s *Service) StartSearch(ctx context.Context, clientID int64, minLiquidity float64) (*domain.ClientFilters, error) {
	results, err := s.fetchResults(ctx, minLiquidity, 0)
	if err != nil {
		return nil, err
	}
	f := &domain.ClientFilters{
		ClientID:     clientID,
		Chain:        domain.ChainSolana,
		MinLiquidity: minLiquidity,
		Results:      results,
		UpdatedAt:    s.now(),
	}
	if err := s.store.Filters.Save(ctx, f); err != nil {
		return nil, fmt.Errorf("save search: %w", err)
	}
	return f, nil
}

// fetchResults lists tokens and fills in their creation time so age filters
// can apply.
func (s *Service) fetchResults(ctx context.Context, minLiquidity float64, offset int) ([]domain.CoinSummary, error) {
	results, err := s.gw.CoinList(ctx, domain.TokenListParams{
		Chain:        domain.ChainSolana,
		MinLiquidity: minLiquidity,
		Offset:       offset,
		Limit:        s.fetchSize,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	infos, err := s.gw.CoinInfo(ctx, domain.ChainSolana, lo.Map(results, func(c domain.CoinSummary, _ int) string { return c.Address }))
	if err != nil {
		return nil, fmt.Errorf("coin info: %w", err)
	}
	created := make(map[string]domain.CoinInfo, len(infos))
	for _, info := range infos {
		created[info.Address] = info
	}
	for i := range results {
		if info, ok := created[results[i].Address]; ok {
			results[i].CreatedAt = info.CreatedAt
			if results[i].MarketCap == 0 {
				results[i].MarketCap = info.MarketCap
			}
		}
	}
	return results, nil
}

// Search returns the client's session.
func (s *Service) Search(ctx context.Context, clientID int64) (*domain.ClientFilters, error) {
	f, err := s.store.Filters.Get(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("get search: %w", err)
	}
	if f == nil {
		return nil, ErrNoSearch
	}
	return f, nil
}

// UpdateSearch changes the session criteria and rewinds paging.
func (s *Service) UpdateSearch(ctx context.Context, clientID int64, mutate func(*domain.ClientFilters)) (*domain.ClientFilters, error) {
	f, err := s.Search(ctx, clientID)
	if err != nil {
		return nil, err
	}
	mutate(f)
	f.Offset = 0
	f.UpdatedAt = s.now()
	if err := s.store.Filters.Save(ctx, f); err != nil {
		return nil, fmt.Errorf("save search: %w", err)
	}
	return f, nil
}

// CountMatches returns how many cached results pass the current criteria.
func (s *Service) CountMatches(f *domain.ClientFilters) int {
	now := s.now()
	return lo.CountBy(f.Results, func(c domain.CoinSummary) bool { return f.Match(c, now) })
}

// NextPage returns the next page of matching results. When the cached
// results run out it loads the next batch from the token list. more reports
// whether another call may return anything.
func (s *Service) NextPage(ctx context.Context, clientID int64) (page []domain.CoinSummary, more bool, err error) {
	f, err := s.Search(ctx, clientID)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	exhausted := false
	for {
		got, next := f.Page(s.pageSize-len(page), now)
		page = append(page, got...)
		f.Offset = next
		if len(page) >= s.pageSize || exhausted {
			break
		}
		// A short upstream batch means the list has ended.
		if len(f.Results) == 0 || len(f.Results)%s.fetchSize != 0 {
			exhausted = true
			break
		}
		batch, err := s.fetchResults(ctx, f.MinLiquidity, len(f.Results))
		if err != nil {
			return nil, false, err
		}
		fresh := lo.Filter(batch, func(c domain.CoinSummary, _ int) bool {
			return !lo.ContainsBy(f.Results, func(r domain.CoinSummary) bool { return r.Address == c.Address })
		})
		if len(fresh) == 0 {
			exhausted = true
			break
		}
		f.Results = append(f.Results, fresh...)
		if len(batch) < s.fetchSize {
			exhausted = true
		}
	}

	f.UpdatedAt = now
	if err := s.store.Filters.Save(ctx, f); err != nil {
		return nil, false, fmt.Errorf("save search: %w", err)
	}

	more = f.Offset < len(f.Results) || (!exhausted && len(f.Results)%s.fetchSize == 0 && len(f.Results) > 0)
	return page, more, nil
}

// EndSearch drops the session.
func (s *Service) EndSearch(ctx context.Context, clientID int64) error {
	return s.store.Filters.Delete(ctx, clientID)
}
