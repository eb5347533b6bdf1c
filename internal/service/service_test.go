package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/coinwatch/internal/core/catalog"
	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage/memory"
)

type fakeGateway struct {
	sigs      map[string][]string
	sigCalls  int
	prices    map[string]float64
	spot      map[string]float64
	infos     map[string]domain.CoinInfo
	tokens    []domain.CoinSummary
	listCalls []domain.TokenListParams
}

func newGateway() *fakeGateway {
	return &fakeGateway{
		sigs:   map[string][]string{},
		prices: map[string]float64{},
		spot:   map[string]float64{},
		infos:  map[string]domain.CoinInfo{},
	}
}

func (g *fakeGateway) Signatures(ctx context.Context, address string, limit int) ([]string, error) {
	g.sigCalls++
	sigs := g.sigs[address]
	if len(sigs) > limit {
		sigs = sigs[:limit]
	}
	return sigs, nil
}

func (g *fakeGateway) CoinPrices(ctx context.Context, refs []domain.CoinRef) ([]domain.CoinPrice, error) {
	var out []domain.CoinPrice
	for _, r := range refs {
		if p, ok := g.prices[r.Address]; ok {
			out = append(out, domain.CoinPrice{Chain: r.Chain, Address: r.Address, Price: p})
		}
	}
	return out, nil
}

func (g *fakeGateway) SpotPrice(ctx context.Context, ch domain.Chain, address string) (*domain.PricePoint, error) {
	if p, ok := g.spot[address]; ok {
		return &domain.PricePoint{Price: p}, nil
	}
	return nil, nil
}

func (g *fakeGateway) CoinInfo(ctx context.Context, ch domain.Chain, addresses []string) ([]domain.CoinInfo, error) {
	var out []domain.CoinInfo
	for _, a := range addresses {
		if info, ok := g.infos[a]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func (g *fakeGateway) CoinList(ctx context.Context, params domain.TokenListParams) ([]domain.CoinSummary, error) {
	g.listCalls = append(g.listCalls, params)
	if params.Offset >= len(g.tokens) {
		return nil, nil
	}
	end := min(params.Offset+params.Limit, len(g.tokens))
	out := make([]domain.CoinSummary, end-params.Offset)
	copy(out, g.tokens[params.Offset:end])
	return out, nil
}

type fixture struct {
	svc   *Service
	gw    *fakeGateway
	coins *memory.CoinRepo
}

func setup(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := memory.NewStore()
	gw := newGateway()
	coins := store.Coins.(*memory.CoinRepo)
	return &fixture{
		svc:   New(store, gw, catalog.NewResolver(gw, store.Coins), cfg),
		gw:    gw,
		coins: coins,
	}
}

// Real Solana keys: two wallets with history and one without.
const (
	walletA     = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	walletB     = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	walletEmpty = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

func TestAddWallet(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{})
	f.gw.sigs[walletA] = []string{"sig1", "sig2"}

	w, err := f.svc.AddWallet(ctx, 1, " "+walletA+" ", domain.ChainSolana)
	require.NoError(t, err)
	assert.Equal(t, walletA, w.Address)

	_, err = f.svc.AddWallet(ctx, 1, walletA, domain.ChainSolana)
	assert.ErrorIs(t, err, domain.ErrDuplicateSubscription)

	// a known wallet is not verified again
	calls := f.gw.sigCalls
	_, err = f.svc.AddWallet(ctx, 2, walletA, domain.ChainSolana)
	require.NoError(t, err)
	assert.Equal(t, calls, f.gw.sigCalls)

	_, err = f.svc.AddWallet(ctx, 1, walletEmpty, domain.ChainSolana)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)

	_, err = f.svc.AddWallet(ctx, 1, "0xabc", domain.ChainEthereum)
	assert.ErrorIs(t, err, domain.ErrUnsupportedChain)

	wallets, err := f.svc.Wallets(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, wallets, 1)
}

func TestAddWalletRejectsMalformedAddress(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{})

	for _, address := range []string{"W1", "0OIl" + walletA[4:], walletA + "1"} {
		calls := f.gw.sigCalls
		_, err := f.svc.AddWallet(ctx, 1, address, domain.ChainSolana)
		assert.ErrorIs(t, err, domain.ErrInvalidAddress, address)
		assert.Equal(t, calls, f.gw.sigCalls, "no upstream call for %s", address)
	}
}

func TestReplaceWallet(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{})
	f.gw.sigs[walletA] = []string{"a"}
	f.gw.sigs[walletB] = []string{"b"}

	w1, err := f.svc.AddWallet(ctx, 1, walletA, domain.ChainSolana)
	require.NoError(t, err)
	w2, err := f.svc.ReplaceWallet(ctx, 1, w1.ID, walletB, domain.ChainSolana)
	require.NoError(t, err)

	wallets, err := f.svc.Wallets(ctx, 1)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, w2.ID, wallets[0].ID)

	// a failed replacement keeps the old wallet
	_, err = f.svc.ReplaceWallet(ctx, 1, w2.ID, walletEmpty, domain.ChainSolana)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	wallets, err = f.svc.Wallets(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, wallets, 1)
}

func TestAddCoinAndTrack(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{})
	f.gw.infos["TKN1"] = domain.CoinInfo{Chain: domain.ChainSolana, Address: "TKN1", Symbol: "TK"}
	f.gw.prices["TKN1"] = 2

	_, err := f.svc.AddCoin(ctx, 1, "NOPE", domain.ChainSolana)
	assert.ErrorIs(t, err, domain.ErrCoinNotFound)

	coin, err := f.svc.AddCoin(ctx, 1, "TKN1", domain.ChainSolana)
	require.NoError(t, err)
	assert.Equal(t, "TK", coin.Symbol)

	sub, err := f.svc.TrackCoin(ctx, 1, coin.ID, domain.DirectionUp, 50)
	require.NoError(t, err)
	assert.Equal(t, 2.0, sub.StartPrice)
	assert.InDelta(t, 3.0, sub.Threshold(), 1e-9)

	require.NoError(t, f.coins.MarkNotified(ctx, []domain.ClientCoinKey{{ClientID: 1, CoinID: coin.ID}}))
	pending, err := f.coins.PendingAlerts(ctx, coin.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// editing the threshold re-arms the alert
	f.gw.prices["TKN1"] = 4
	sub, err = f.svc.TrackCoin(ctx, 1, coin.ID, domain.DirectionDown, 25)
	require.NoError(t, err)
	assert.Equal(t, 4.0, sub.StartPrice)
	pending, err = f.coins.PendingAlerts(ctx, coin.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].NotificationSent)

	_, err = f.svc.TrackCoin(ctx, 2, coin.ID, domain.DirectionUp, 10)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	_, err = f.svc.TrackCoin(ctx, 1, coin.ID, domain.DirectionDown, 100)
	assert.Error(t, err)
}

func TestTrackCoinFallsBackToSpot(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{})
	f.gw.infos["TKN1"] = domain.CoinInfo{Chain: domain.ChainBase, Address: "TKN1"}

	coin, err := f.svc.AddCoin(ctx, 1, "TKN1", domain.ChainBase)
	require.NoError(t, err)

	_, err = f.svc.TrackCoin(ctx, 1, coin.ID, domain.DirectionUp, 10)
	assert.ErrorIs(t, err, ErrPriceUnavailable)

	f.gw.spot["TKN1"] = 0.25
	sub, err := f.svc.TrackCoin(ctx, 1, coin.ID, domain.DirectionUp, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.25, sub.StartPrice)
}

func TestAlertSettings(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{})

	require.NoError(t, f.svc.SetAlertsEnabled(ctx, 5, false))
	c, err := f.svc.Client(ctx, 5)
	require.NoError(t, err)
	assert.False(t, c.AlertsEnabled)

	hour := time.Hour
	filter, err := f.svc.UpdateAlertFilter(ctx, 5, func(af *domain.AlertFilter) { af.MinAge = &hour })
	require.NoError(t, err)
	require.NotNil(t, filter.MinAge)
	c, err = f.svc.Client(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, *c.Filter.MinAge)
}

func TestSearchPaging(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{PageSize: 3, FetchSize: 4})
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		addr := fmt.Sprintf("T%d", i)
		f.gw.tokens = append(f.gw.tokens, domain.CoinSummary{Address: addr, Price: float64(i)})
		f.gw.infos[addr] = domain.CoinInfo{Address: addr, CreatedAt: now.Add(-time.Duration(i) * time.Hour)}
	}

	sess, err := f.svc.StartSearch(ctx, 1, 1000)
	require.NoError(t, err)
	require.Len(t, sess.Results, 4)
	assert.Equal(t, now.Add(-2*time.Hour), sess.Results[2].CreatedAt)
	assert.Equal(t, 1000.0, f.gw.listCalls[0].MinLiquidity)

	minPrice := 0.0
	_, err = f.svc.UpdateSearch(ctx, 1, func(cf *domain.ClientFilters) { cf.MinPrice = &minPrice })
	require.NoError(t, err)

	page, more, err := f.svc.NextPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"T0", "T1", "T2"}, addresses(page))
	assert.True(t, more)

	page, more, err = f.svc.NextPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"T3", "T4", "T5"}, addresses(page))
	assert.True(t, more)
	assert.Len(t, f.gw.listCalls, 2)

	page, _, err = f.svc.NextPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"T6", "T7", "T8"}, addresses(page))

	page, more, err = f.svc.NextPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"T9"}, addresses(page))
	assert.False(t, more)

	require.NoError(t, f.svc.EndSearch(ctx, 1))
	_, _, err = f.svc.NextPage(ctx, 1)
	assert.ErrorIs(t, err, ErrNoSearch)
}

func TestSearchAgeFilter(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{PageSize: 10, FetchSize: 10})
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	f.gw.tokens = []domain.CoinSummary{{Address: "OLD"}, {Address: "NEW"}, {Address: "UNKNOWN"}}
	f.gw.infos["OLD"] = domain.CoinInfo{Address: "OLD", CreatedAt: now.Add(-48 * time.Hour)}
	f.gw.infos["NEW"] = domain.CoinInfo{Address: "NEW", CreatedAt: now.Add(-time.Hour)}

	_, err := f.svc.StartSearch(ctx, 1, 0)
	require.NoError(t, err)
	day := 24 * time.Hour
	sess, err := f.svc.UpdateSearch(ctx, 1, func(cf *domain.ClientFilters) { cf.MaxAge = &day })
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.CountMatches(sess))

	page, more, err := f.svc.NextPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW"}, addresses(page))
	assert.False(t, more)
}

func addresses(cs []domain.CoinSummary) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Address
	}
	return out
}
