package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSMKeyedByUserAndFlow(t *testing.T) {
	f := NewFSM(time.Hour)

	f.Begin(1, FlowWallet, StepAddress, WalletInput{})
	f.Begin(1, FlowFilters, StepValue, FilterInput{Field: FieldMaxPrice})
	f.Begin(2, FlowWallet, StepAddress, WalletInput{ReplaceID: 9})

	st, ok := f.Active(1)
	require.True(t, ok)
	assert.Equal(t, FlowFilters, st.Flow)

	// the older flow is still there
	st, ok = f.Get(1, FlowWallet)
	require.True(t, ok)
	assert.Equal(t, StepAddress, st.Step)

	st, ok = f.Get(2, FlowWallet)
	require.True(t, ok)
	in, ok := PayloadOf[WalletInput](st)
	require.True(t, ok)
	assert.Equal(t, int64(9), in.ReplaceID)

	_, ok = PayloadOf[CoinInput](st)
	assert.False(t, ok)
}

func TestFSMAdvanceAndEnd(t *testing.T) {
	f := NewFSM(time.Hour)

	assert.False(t, f.Advance(1, FlowCoin, StepChain, CoinInput{}))

	f.Begin(1, FlowCoin, StepAddress, CoinInput{})
	require.True(t, f.Advance(1, FlowCoin, StepChain, CoinInput{Address: "A"}))

	st, ok := f.Active(1)
	require.True(t, ok)
	assert.Equal(t, StepChain, st.Step)
	in, _ := PayloadOf[CoinInput](st)
	assert.Equal(t, "A", in.Address)

	f.End(1, FlowCoin)
	_, ok = f.Active(1)
	assert.False(t, ok)
	_, ok = f.Get(1, FlowCoin)
	assert.False(t, ok)
}

func TestFSMReset(t *testing.T) {
	f := NewFSM(time.Hour)
	f.Begin(1, FlowCoin, StepAddress, CoinInput{})
	f.Begin(1, FlowSearch, StepLiquidity, SearchInput{})
	f.Begin(2, FlowCoin, StepAddress, CoinInput{})

	f.Reset(1)

	_, ok := f.Get(1, FlowCoin)
	assert.False(t, ok)
	_, ok = f.Get(1, FlowSearch)
	assert.False(t, ok)
	_, ok = f.Get(2, FlowCoin)
	assert.True(t, ok)
}

func TestFSMExpires(t *testing.T) {
	f := NewFSM(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	f.Begin(1, FlowWallet, StepAddress, WalletInput{})
	now = now.Add(2 * time.Minute)

	_, ok := f.Active(1)
	assert.False(t, ok)
	assert.False(t, f.Advance(1, FlowWallet, StepChain, WalletInput{}))
}
