package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/coinwatch/internal/alerting"
	"github.com/vietddude/coinwatch/internal/core/config"
	"github.com/vietddude/coinwatch/internal/core/domain"
)

func memoryConfig() *config.AppConfig {
	cfg := &config.AppConfig{}
	cfg.Notify.CoinsInterval = time.Hour
	cfg.Notify.WalletsInterval = time.Hour
	cfg.Search.PageSize = 5
	cfg.Search.FetchSize = 50
	return cfg
}

func TestNewWithoutBackends(t *testing.T) {
	app, err := New(context.Background(), memoryConfig(), Options{}, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.bot)
	assert.Nil(t, app.db)
	assert.Nil(t, app.redis)
	assert.ElementsMatch(t,
		[]string{"alchemy-prices", "birdeye", "dexscreener", "solana"},
		app.providers.Names())

	var names []string
	for _, st := range app.Scheduler().Status() {
		names = append(names, st.Name)
	}
	assert.ElementsMatch(t, []string{alerting.CoinsCycle, alerting.WalletsCycle}, names)

	// the service runs against memory storage
	created, err := app.Service().RegisterClient(context.Background(), &domain.Client{ID: 7})
	require.NoError(t, err)
	assert.True(t, created)
	counts, err := app.Service().Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Clients)
}

func TestAlchemyBecomesPrimary(t *testing.T) {
	cfg := memoryConfig()
	cfg.Providers.Alchemy.URL = "http://127.0.0.1:1/v2/key"
	app, err := New(context.Background(), cfg, Options{}, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Contains(t, app.providers.Names(), "alchemy-solana")
}

func TestMetricsEndpoint(t *testing.T) {
	app, err := New(context.Background(), memoryConfig(), Options{}, nil)
	require.NoError(t, err)
	defer app.Close()

	rec := httptest.NewRecorder()
	app.Health().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := memoryConfig()
	cfg.Server.Port = 0
	app, err := New(context.Background(), cfg, Options{NoBot: true}, nil)
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, time.Second) }()

	require.Eventually(t, func() bool {
		for _, st := range app.Scheduler().Status() {
			if st.Runs == 0 {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
