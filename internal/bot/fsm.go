package bot

import (
	"sync"
	"time"
)

// Flow is a multi-step conversation.
type Flow string

const (
	FlowWallet  Flow = "wallet"
	FlowCoin    Flow = "coin"
	FlowTrack   Flow = "track"
	FlowFilters Flow = "filters"
	FlowSearch  Flow = "search"
)

// Step is a position inside a flow.
type Step string

const (
	StepAddress   Step = "address"
	StepChain     Step = "chain"
	StepValue     Step = "value"
	StepLiquidity Step = "liquidity"
	StepBrowse    Step = "browse"
)

// Typed payloads, one per flow.
type (
	WalletInput struct {
		Address   string
		ReplaceID int64
	}
	CoinInput struct {
		Address   string
		ReplaceID int64
	}
	TrackInput struct {
		CoinID    int64
		Direction string
	}
	FilterInput struct {
		Field string
	}
	SearchInput struct {
		Field string
	}
)

// State is where a user is inside one flow.
type State struct {
	Flow      Flow
	Step      Step
	Payload   any
	UpdatedAt time.Time
}

type stateKey struct {
	user int64
	flow Flow
}

// FSM tracks conversations keyed by (user, flow). Only the most recently
// started flow of a user receives free text.
type FSM struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	states map[stateKey]*State
	active map[int64]Flow
}

func NewFSM(ttl time.Duration) *FSM {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &FSM{
		ttl:    ttl,
		now:    time.Now,
		states: make(map[stateKey]*State),
		active: make(map[int64]Flow),
	}
}

// Begin starts or restarts a flow and makes it the active one.
func (f *FSM) Begin(user int64, flow Flow, step Step, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[stateKey{user, flow}] = &State{Flow: flow, Step: step, Payload: payload, UpdatedAt: f.now()}
	f.active[user] = flow
}

// Advance moves an existing flow to step. It reports false if the flow is
// not in progress.
func (f *FSM) Advance(user int64, flow Flow, step Step, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.getLocked(user, flow)
	if !ok {
		return false
	}
	st.Step = step
	st.Payload = payload
	st.UpdatedAt = f.now()
	f.active[user] = flow
	return true
}

// Get returns a copy of the user's state in flow.
func (f *FSM) Get(user int64, flow Flow) (State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.getLocked(user, flow)
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Active returns the flow that should receive the user's next text message.
func (f *FSM) Active(user int64) (State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	flow, ok := f.active[user]
	if !ok {
		return State{}, false
	}
	st, ok := f.getLocked(user, flow)
	if !ok {
		delete(f.active, user)
		return State{}, false
	}
	return *st, true
}

// End drops one flow.
func (f *FSM) End(user int64, flow Flow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, stateKey{user, flow})
	if f.active[user] == flow {
		delete(f.active, user)
	}
}

// Reset drops every flow of the user.
func (f *FSM) Reset(user int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.states {
		if k.user == user {
			delete(f.states, k)
		}
	}
	delete(f.active, user)
}

func (f *FSM) getLocked(user int64, flow Flow) (*State, bool) {
	k := stateKey{user, flow}
	st, ok := f.states[k]
	if !ok {
		return nil, false
	}
	if f.now().Sub(st.UpdatedAt) > f.ttl {
		delete(f.states, k)
		return nil, false
	}
	return st, true
}

// PayloadOf returns the state's payload as T.
func PayloadOf[T any](st State) (T, bool) {
	p, ok := st.Payload.(T)
	return p, ok
}
