package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/vietddude/coinwatch/internal/core/catalog"
	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage/memory"
	"github.com/vietddude/coinwatch/internal/service"
)

type stubGateway struct {
	sigs   map[string][]string
	prices map[string]float64
	infos  map[string]domain.CoinInfo
	tokens []domain.CoinSummary
}

func (g *stubGateway) Signatures(ctx context.Context, address string, limit int) ([]string, error) {
	return g.sigs[address], nil
}

func (g *stubGateway) CoinPrices(ctx context.Context, refs []domain.CoinRef) ([]domain.CoinPrice, error) {
	var out []domain.CoinPrice
	for _, r := range refs {
		if p, ok := g.prices[r.Address]; ok {
			out = append(out, domain.CoinPrice{Chain: r.Chain, Address: r.Address, Price: p})
		}
	}
	return out, nil
}

func (g *stubGateway) SpotPrice(ctx context.Context, ch domain.Chain, address string) (*domain.PricePoint, error) {
	return nil, nil
}

func (g *stubGateway) CoinInfo(ctx context.Context, ch domain.Chain, addresses []string) ([]domain.CoinInfo, error) {
	var out []domain.CoinInfo
	for _, a := range addresses {
		if info, ok := g.infos[a]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func (g *stubGateway) CoinList(ctx context.Context, params domain.TokenListParams) ([]domain.CoinSummary, error) {
	if params.Offset >= len(g.tokens) {
		return nil, nil
	}
	end := min(params.Offset+params.Limit, len(g.tokens))
	return append([]domain.CoinSummary(nil), g.tokens[params.Offset:end]...), nil
}

// Real Solana keys: two wallets with history and one without.
const (
	walletA     = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	walletB     = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	walletEmpty = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

func newHandlers(t *testing.T) (*Handlers, *service.Service, *stubGateway) {
	t.Helper()
	gw := &stubGateway{
		sigs:   map[string][]string{walletA: {"sig1"}, walletB: {"sig2"}},
		prices: map[string]float64{"C1": 2},
		infos: map[string]domain.CoinInfo{
			"C1": {Chain: domain.ChainSolana, Address: "C1", Symbol: "ONE", Name: "One"},
		},
	}
	store := memory.NewStore()
	svc := service.New(store, gw, catalog.NewResolver(gw, store.Coins), service.Config{PageSize: 2, FetchSize: 10})
	return NewHandlers(svc, NewFSM(time.Hour), nil), svc, gw
}

// callbacks collects the callback data of every button.
func callbacks(m *tb.ReplyMarkup) []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, row := range m.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestStartRegistersClient(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newHandlers(t)

	r := h.Start(ctx, &domain.Client{ID: 1, Username: "alice"})
	assert.Contains(t, r.Text, "/add_wallet")

	c, err := svc.Client(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Username)
	assert.True(t, c.AlertsEnabled)
}

func TestWalletFlow(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newHandlers(t)

	r := h.AddWallet(ctx, 1, "")
	assert.Contains(t, r.Text, "wallet address")

	// a malformed address keeps the flow open
	r = h.Text(ctx, 1, "not-an-address")
	assert.Contains(t, r.Text, "not a valid Solana address")
	_, ok := h.fsm.Active(1)
	assert.True(t, ok)

	// so does an address without history
	r = h.Text(ctx, 1, walletEmpty)
	assert.Contains(t, r.Text, "No transactions found")
	_, ok = h.fsm.Active(1)
	assert.True(t, ok)

	r = h.Text(ctx, 1, walletA)
	assert.Contains(t, r.Text, "Following wallet <code>"+walletA+"</code>")
	_, ok = h.fsm.Active(1)
	assert.False(t, ok)

	wallets, err := svc.Wallets(ctx, 1)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	wid := id(wallets[0].ID)

	r = h.EditWallet(ctx, 1)
	assert.Equal(t, []string{"w:" + wid}, callbacks(r.Markup))

	r = h.Callback(ctx, 1, "w:"+wid)
	assert.ElementsMatch(t, []string{"wrep:" + wid, "wdel:" + wid, "cancel"}, callbacks(r.Markup))

	h.Callback(ctx, 1, "wrep:"+wid)
	r = h.Text(ctx, 1, walletB)
	assert.Contains(t, r.Text, walletB)
	wallets, err = svc.Wallets(ctx, 1)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, walletB, wallets[0].Address)

	r = h.Callback(ctx, 1, "wdel:"+id(wallets[0].ID))
	assert.Equal(t, "Wallet removed.", r.Text)
	wallets, err = svc.Wallets(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestAddWalletWithArgument(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newHandlers(t)

	r := h.AddWallet(ctx, 1, walletA)
	assert.Contains(t, r.Text, "Following wallet")

	r = h.AddWallet(ctx, 1, walletA)
	assert.Equal(t, "You are already following it.", r.Text)
}

func TestCoinFlowAndTracking(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newHandlers(t)

	r := h.AddCoin(ctx, 1, "C1")
	assert.Contains(t, callbacks(r.Markup), "cchain:solana")
	assert.Contains(t, callbacks(r.Markup), "cchain:base")

	r = h.Callback(ctx, 1, "cchain:solana")
	assert.Contains(t, r.Text, "Following <b>ONE</b> on solana")

	tracked, err := svc.Coins(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tracked, 1)
	cid := id(tracked[0].Coin.ID)
	assert.Equal(t, []string{"ctrack:" + cid + ":up", "ctrack:" + cid + ":down"}, callbacks(r.Markup))

	h.Callback(ctx, 1, "ctrack:"+cid+":down")
	r = h.Text(ctx, 1, "150")
	assert.Contains(t, r.Text, "cannot be reached")

	r = h.Text(ctx, 1, "50")
	assert.Contains(t, r.Text, "goes down 50% from 2$ (1$)")

	tc, err := svc.Coin(ctx, 1, tracked[0].Coin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionDown, tc.Sub.Direction)
	assert.Equal(t, 2.0, tc.Sub.StartPrice)

	r = h.Callback(ctx, 1, "c:"+cid)
	assert.Contains(t, r.Text, "Alert: down 50% from 2$")

	r = h.Callback(ctx, 1, "cdel:"+cid)
	assert.Equal(t, "Coin removed.", r.Text)
}

func TestCoinChainWithoutFlow(t *testing.T) {
	h, _, _ := newHandlers(t)
	r := h.Callback(context.Background(), 1, "cchain:solana")
	assert.Contains(t, r.Text, "/add_coin")
}

func TestUnknownCoin(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newHandlers(t)
	h.AddCoin(ctx, 1, "NOPE")
	r := h.Callback(ctx, 1, "cchain:ethereum")
	assert.Contains(t, r.Text, "could not find this coin")
}

func TestFilters(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newHandlers(t)

	r := h.Filters(ctx, 1)
	assert.Contains(t, r.Text, "Min age: none")

	h.Callback(ctx, 1, "f:"+FieldMinAge)
	r = h.Text(ctx, 1, "later")
	assert.Contains(t, r.Text, "Could not read that")

	r = h.Text(ctx, 1, "2 hours")
	assert.Contains(t, r.Text, "Min age: 2h")

	h.Callback(ctx, 1, "f:"+FieldMaxPrice)
	h.Text(ctx, 1, "0,5")

	c, err := svc.Client(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, c.Filter.MinAge)
	assert.Equal(t, 2*time.Hour, *c.Filter.MinAge)
	require.NotNil(t, c.Filter.MaxPrice)
	assert.Equal(t, 0.5, *c.Filter.MaxPrice)

	h.Callback(ctx, 1, "f:"+FieldMinAge)
	h.Text(ctx, 1, "-")
	c, err = svc.Client(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, c.Filter.MinAge)
	assert.NotNil(t, c.Filter.MaxPrice)

	h.Callback(ctx, 1, "fclr")
	c, err = svc.Client(ctx, 1)
	require.NoError(t, err)
	assert.True(t, c.Filter.IsZero())
}

func TestToggleAlerts(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newHandlers(t)

	r := h.ToggleAlerts(ctx, 1)
	assert.Contains(t, r.Text, "off")
	c, err := svc.Client(ctx, 1)
	require.NoError(t, err)
	assert.False(t, c.AlertsEnabled)

	r = h.ToggleAlerts(ctx, 1)
	assert.Equal(t, "Alerts are on.", r.Text)
}

func TestSearchFlow(t *testing.T) {
	ctx := context.Background()
	h, _, gw := newHandlers(t)
	gw.tokens = []domain.CoinSummary{
		{Address: "T1", Symbol: "AAA", Price: 1},
		{Address: "T2", Symbol: "BBB", Price: 3},
		{Address: "T3", Symbol: "CCC", Price: 5},
	}

	r := h.Search(ctx, 1, "")
	assert.Contains(t, r.Text, "minimum liquidity")

	r = h.Text(ctx, 1, "1000")
	assert.Contains(t, r.Text, "Matches so far: 3 of 3")
	assert.Contains(t, callbacks(r.Markup), "sshow")

	h.Callback(ctx, 1, "s:"+FieldMinPrice)
	r = h.Text(ctx, 1, "2")
	assert.Contains(t, r.Text, "Matches so far: 2 of 3")

	r = h.Callback(ctx, 1, "sshow")
	assert.Contains(t, r.Text, "BBB")
	assert.Contains(t, r.Text, "CCC")
	assert.NotContains(t, r.Text, "AAA")
	assert.NotContains(t, callbacks(r.Markup), "smore")

	r = h.Callback(ctx, 1, "send")
	assert.Equal(t, "Search closed.", r.Text)

	r = h.Callback(ctx, 1, "sshow")
	assert.Contains(t, r.Text, "No search in progress")
}

func TestTextWithoutFlow(t *testing.T) {
	h, _, _ := newHandlers(t)
	r := h.Text(context.Background(), 1, "hello")
	assert.Contains(t, r.Text, "/help")
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newHandlers(t)
	h.AddWallet(ctx, 1, "")
	h.Cancel(ctx, 1)
	r := h.Text(ctx, 1, walletA)
	assert.Contains(t, r.Text, "/help")
}

func TestUnknownCommand(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newHandlers(t)
	h.AddWallet(ctx, 1, "")
	r := h.Text(ctx, 1, "/nope")
	assert.Contains(t, r.Text, "Unknown command")

	// the flow is still waiting for the address
	_, ok := h.fsm.Active(1)
	assert.True(t, ok)
}
