package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/notify"
	"github.com/vietddude/coinwatch/internal/service"
)

// Backend is what the handlers need from the subscription service.
type Backend interface {
	RegisterClient(ctx context.Context, c *domain.Client) (bool, error)
	Client(ctx context.Context, id int64) (*domain.Client, error)
	SetAlertsEnabled(ctx context.Context, clientID int64, enabled bool) error
	UpdateAlertFilter(ctx context.Context, clientID int64, mutate func(*domain.AlertFilter)) (domain.AlertFilter, error)

	AddWallet(ctx context.Context, clientID int64, address string, ch domain.Chain) (*domain.Wallet, error)
	ReplaceWallet(ctx context.Context, clientID, oldWalletID int64, address string, ch domain.Chain) (*domain.Wallet, error)
	RemoveWallet(ctx context.Context, clientID, walletID int64) error
	Wallets(ctx context.Context, clientID int64) ([]*domain.Wallet, error)
	Wallet(ctx context.Context, clientID, walletID int64) (*domain.Wallet, error)

	AddCoin(ctx context.Context, clientID int64, address string, ch domain.Chain) (*domain.Coin, error)
	ReplaceCoin(ctx context.Context, clientID, oldCoinID int64, address string, ch domain.Chain) (*domain.Coin, error)
	RemoveCoin(ctx context.Context, clientID, coinID int64) error
	Coins(ctx context.Context, clientID int64) ([]service.TrackedCoin, error)
	Coin(ctx context.Context, clientID, coinID int64) (*service.TrackedCoin, error)
	TrackCoin(ctx context.Context, clientID, coinID int64, dir domain.Direction, percentage float64) (*domain.ClientCoin, error)

	StartSearch(ctx context.Context, clientID int64, minLiquidity float64) (*domain.ClientFilters, error)
	Search(ctx context.Context, clientID int64) (*domain.ClientFilters, error)
	UpdateSearch(ctx context.Context, clientID int64, mutate func(*domain.ClientFilters)) (*domain.ClientFilters, error)
	CountMatches(f *domain.ClientFilters) int
	NextPage(ctx context.Context, clientID int64) ([]domain.CoinSummary, bool, error)
	EndSearch(ctx context.Context, clientID int64) error
}

// Reply is a handler's answer. Edit asks the transport to replace the
// message a button was pressed on instead of sending a new one.
type Reply struct {
	Text   string
	Markup *tb.ReplyMarkup
	Edit   bool
}

// Filter and search fields editable from the keyboards.
const (
	FieldMaxPrice     = "max_price"
	FieldMinPrice     = "min_price"
	FieldMinMarketCap = "min_mcap"
	FieldMinAge       = "min_age"
	FieldMaxAge       = "max_age"
)

var fieldLabels = map[string]string{
	FieldMaxPrice:     "Max price",
	FieldMinPrice:     "Min price",
	FieldMinMarketCap: "Min market cap",
	FieldMinAge:       "Min age",
	FieldMaxAge:       "Max age",
}

const helpText = `<b>coinwatch</b> follows wallets and coins for you.

/add_wallet - follow a wallet's buys
/edit_wallet - replace or remove a wallet
/add_coin - follow a coin
/edit_coin - set price alerts, replace or remove a coin
/filters - limit which wallet buys you hear about
/search - browse tokens by liquidity, price, age and market cap
/toggle_alerts - pause or resume all alerts
/cancel - abort the current input`

// Handlers implements every command and button of the bot.
type Handlers struct {
	svc Backend
	fsm *FSM
	log *slog.Logger
	now func() time.Time
}

func NewHandlers(svc Backend, fsm *FSM, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	if fsm == nil {
		fsm = NewFSM(0)
	}
	return &Handlers{svc: svc, fsm: fsm, log: log.With("component", "bot"), now: time.Now}
}

// Start registers the user and prints the command list.
func (h *Handlers) Start(ctx context.Context, c *domain.Client) Reply {
	h.fsm.Reset(c.ID)
	if _, err := h.svc.RegisterClient(ctx, c); err != nil {
		return h.failure(c.ID, "start", err)
	}
	return Reply{Text: helpText}
}

func (h *Handlers) Help(ctx context.Context, user int64) Reply {
	return Reply{Text: helpText}
}

// Cancel aborts every flow in progress.
func (h *Handlers) Cancel(ctx context.Context, user int64) Reply {
	h.fsm.Reset(user)
	return Reply{Text: "Cancelled."}
}

// AddWallet starts the wallet flow. An address given with the command
// skips the first question.
func (h *Handlers) AddWallet(ctx context.Context, user int64, args string) Reply {
	h.fsm.Begin(user, FlowWallet, StepAddress, WalletInput{})
	if addr := strings.TrimSpace(args); addr != "" {
		return h.walletAddress(ctx, user, WalletInput{Address: addr})
	}
	return Reply{Text: "Send the wallet address."}
}

// EditWallet lists the user's wallets as buttons.
func (h *Handlers) EditWallet(ctx context.Context, user int64) Reply {
	wallets, err := h.svc.Wallets(ctx, user)
	if err != nil {
		return h.failure(user, "edit_wallet", err)
	}
	if len(wallets) == 0 {
		return Reply{Text: "You are not following any wallet. Use /add_wallet."}
	}
	rows := make([][]tb.InlineButton, 0, len(wallets))
	for _, w := range wallets {
		rows = append(rows, []tb.InlineButton{button(shortAddress(w.Address), "w", id(w.ID))})
	}
	return Reply{Text: "Choose a wallet:", Markup: inline(rows...)}
}

// AddCoin starts the coin flow.
func (h *Handlers) AddCoin(ctx context.Context, user int64, args string) Reply {
	h.fsm.Begin(user, FlowCoin, StepAddress, CoinInput{})
	if addr := strings.TrimSpace(args); addr != "" {
		return h.coinAddress(user, CoinInput{Address: addr})
	}
	return Reply{Text: "Send the coin contract address."}
}

// EditCoin lists the user's coins as buttons.
func (h *Handlers) EditCoin(ctx context.Context, user int64) Reply {
	tracked, err := h.svc.Coins(ctx, user)
	if err != nil {
		return h.failure(user, "edit_coin", err)
	}
	if len(tracked) == 0 {
		return Reply{Text: "You are not following any coin. Use /add_coin."}
	}
	rows := make([][]tb.InlineButton, 0, len(tracked))
	for _, t := range tracked {
		rows = append(rows, []tb.InlineButton{button(coinLabel(t.Coin), "c", id(t.Coin.ID))})
	}
	return Reply{Text: "Choose a coin:", Markup: inline(rows...)}
}

// Filters shows the wallet alert filter with a button per field.
func (h *Handlers) Filters(ctx context.Context, user int64) Reply {
	c, err := h.svc.Client(ctx, user)
	if err != nil {
		return h.failure(user, "filters", err)
	}
	return h.filtersReply(c.Filter, false)
}

// ToggleAlerts flips the user's global alert switch.
func (h *Handlers) ToggleAlerts(ctx context.Context, user int64) Reply {
	c, err := h.svc.Client(ctx, user)
	if err != nil {
		return h.failure(user, "toggle_alerts", err)
	}
	enabled := !c.AlertsEnabled
	if err := h.svc.SetAlertsEnabled(ctx, user, enabled); err != nil {
		return h.failure(user, "toggle_alerts", err)
	}
	if enabled {
		return Reply{Text: "Alerts are on."}
	}
	return Reply{Text: "Alerts are off. Use /toggle_alerts to turn them back on."}
}

// Search starts a search session by asking for the minimum liquidity.
func (h *Handlers) Search(ctx context.Context, user int64, args string) Reply {
	h.fsm.Begin(user, FlowSearch, StepLiquidity, SearchInput{})
	if v := strings.TrimSpace(args); v != "" {
		return h.searchLiquidity(ctx, user, v)
	}
	return Reply{Text: "Send the minimum liquidity in USD, e.g. 10000."}
}

// Text routes free text to the user's active flow.
func (h *Handlers) Text(ctx context.Context, user int64, text string) Reply {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return Reply{Text: "Unknown command. Use /help to see what I can do."}
	}
	st, ok := h.fsm.Active(user)
	if !ok {
		return Reply{Text: "Use /help to see what I can do."}
	}
	switch st.Flow {
	case FlowWallet:
		in, _ := PayloadOf[WalletInput](st)
		in.Address = text
		return h.walletAddress(ctx, user, in)
	case FlowCoin:
		in, _ := PayloadOf[CoinInput](st)
		in.Address = text
		return h.coinAddress(user, in)
	case FlowTrack:
		in, _ := PayloadOf[TrackInput](st)
		return h.trackPercentage(ctx, user, in, text)
	case FlowFilters:
		in, _ := PayloadOf[FilterInput](st)
		return h.filterValue(ctx, user, in, text)
	case FlowSearch:
		switch st.Step {
		case StepLiquidity:
			return h.searchLiquidity(ctx, user, text)
		case StepValue:
			in, _ := PayloadOf[SearchInput](st)
			return h.searchValue(ctx, user, in, text)
		}
		return Reply{Text: "Use the buttons above, or /cancel."}
	}
	return Reply{Text: "Use /help to see what I can do."}
}

// Callback handles a button press. data is "action[:arg[:arg]]".
func (h *Handlers) Callback(ctx context.Context, user int64, data string) Reply {
	action, args, _ := strings.Cut(data, ":")
	parts := strings.Split(args, ":")
	arg := parts[0]

	switch action {
	case "wchain":
		return h.walletChain(ctx, user, arg)
	case "w":
		return h.walletMenu(ctx, user, arg)
	case "wrep":
		wid, _ := strconv.ParseInt(arg, 10, 64)
		h.fsm.Begin(user, FlowWallet, StepAddress, WalletInput{ReplaceID: wid})
		return Reply{Text: "Send the new wallet address.", Edit: true}
	case "wdel":
		wid, _ := strconv.ParseInt(arg, 10, 64)
		if err := h.svc.RemoveWallet(ctx, user, wid); err != nil {
			return h.failure(user, "remove_wallet", err)
		}
		return Reply{Text: "Wallet removed.", Edit: true}

	case "cchain":
		return h.coinChain(ctx, user, arg)
	case "c":
		return h.coinMenu(ctx, user, arg)
	case "ctrack":
		cid, _ := strconv.ParseInt(arg, 10, 64)
		dir := domain.DirectionUp
		if len(parts) > 1 {
			if d, ok := domain.ParseDirection(parts[1]); ok {
				dir = d
			}
		}
		h.fsm.Begin(user, FlowTrack, StepValue, TrackInput{CoinID: cid, Direction: string(dir)})
		return Reply{Text: fmt.Sprintf("Send the percentage change (%s) to alert on, e.g. 25.", dir), Edit: true}
	case "crep":
		cid, _ := strconv.ParseInt(arg, 10, 64)
		h.fsm.Begin(user, FlowCoin, StepAddress, CoinInput{ReplaceID: cid})
		return Reply{Text: "Send the new coin contract address.", Edit: true}
	case "cdel":
		cid, _ := strconv.ParseInt(arg, 10, 64)
		if err := h.svc.RemoveCoin(ctx, user, cid); err != nil {
			return h.failure(user, "remove_coin", err)
		}
		return Reply{Text: "Coin removed.", Edit: true}

	case "f":
		if _, ok := fieldLabels[arg]; !ok {
			return Reply{Text: "Unknown filter."}
		}
		h.fsm.Begin(user, FlowFilters, StepValue, FilterInput{Field: arg})
		return Reply{Text: fmt.Sprintf("Send the %s, or \"-\" to clear it.%s", strings.ToLower(fieldLabels[arg]), valueHint(arg)), Edit: true}
	case "fclr":
		f, err := h.svc.UpdateAlertFilter(ctx, user, func(f *domain.AlertFilter) { *f = domain.AlertFilter{} })
		if err != nil {
			return h.failure(user, "filters", err)
		}
		h.fsm.End(user, FlowFilters)
		return h.filtersReply(f, true)

	case "s":
		if _, ok := fieldLabels[arg]; !ok {
			return Reply{Text: "Unknown filter."}
		}
		if _, ok := h.fsm.Get(user, FlowSearch); !ok {
			h.fsm.Begin(user, FlowSearch, StepValue, SearchInput{Field: arg})
		} else {
			h.fsm.Advance(user, FlowSearch, StepValue, SearchInput{Field: arg})
		}
		return Reply{Text: fmt.Sprintf("Send the %s, or \"-\" to clear it.%s", strings.ToLower(fieldLabels[arg]), valueHint(arg))}
	case "sshow", "smore":
		return h.searchPage(ctx, user)
	case "send":
		h.fsm.End(user, FlowSearch)
		if err := h.svc.EndSearch(ctx, user); err != nil {
			return h.failure(user, "search", err)
		}
		return Reply{Text: "Search closed.", Edit: true}
	case "cancel":
		h.fsm.Reset(user)
		return Reply{Text: "Cancelled.", Edit: true}
	}
	h.log.Warn("Unknown callback", "user", user, "data", data)
	return Reply{}
}

func (h *Handlers) walletAddress(ctx context.Context, user int64, in WalletInput) Reply {
	if in.Address == "" {
		return Reply{Text: "Send the wallet address."}
	}
	if len(domain.WalletChains) == 1 {
		return h.finishWallet(ctx, user, in, domain.WalletChains[0])
	}
	h.fsm.Advance(user, FlowWallet, StepChain, in)
	return Reply{Text: "Which network?", Markup: chainKeyboard("wchain", domain.WalletChains)}
}

func (h *Handlers) walletChain(ctx context.Context, user int64, chain string) Reply {
	st, ok := h.fsm.Get(user, FlowWallet)
	in, typed := PayloadOf[WalletInput](st)
	if !ok || !typed || in.Address == "" {
		return Reply{Text: "Start again with /add_wallet.", Edit: true}
	}
	ch, err := domain.ParseChain(chain)
	if err != nil {
		return h.failure(user, "add_wallet", err)
	}
	r := h.finishWallet(ctx, user, in, ch)
	r.Edit = true
	return r
}

func (h *Handlers) finishWallet(ctx context.Context, user int64, in WalletInput, ch domain.Chain) Reply {
	var (
		w   *domain.Wallet
		err error
	)
	if in.ReplaceID != 0 {
		w, err = h.svc.ReplaceWallet(ctx, user, in.ReplaceID, in.Address, ch)
	} else {
		w, err = h.svc.AddWallet(ctx, user, in.Address, ch)
	}
	if err != nil {
		// keep the flow open so the user can retry with another address
		if errors.Is(err, domain.ErrInvalidAddress) {
			return Reply{Text: "That is not a valid Solana address. Send it again, or /cancel."}
		}
		if errors.Is(err, domain.ErrWalletNotFound) {
			return Reply{Text: "No transactions found for this address. Check it and send it again, or /cancel."}
		}
		h.fsm.End(user, FlowWallet)
		return h.failure(user, "add_wallet", err)
	}
	h.fsm.End(user, FlowWallet)
	return Reply{Text: fmt.Sprintf("Following wallet <code>%s</code> on %s.", html.EscapeString(w.Address), w.Chain)}
}

func (h *Handlers) walletMenu(ctx context.Context, user int64, arg string) Reply {
	wid, _ := strconv.ParseInt(arg, 10, 64)
	w, err := h.svc.Wallet(ctx, user, wid)
	if err != nil {
		return h.failure(user, "edit_wallet", err)
	}
	return Reply{
		Text: fmt.Sprintf("Wallet <code>%s</code> on %s", html.EscapeString(w.Address), w.Chain),
		Markup: inline(
			[]tb.InlineButton{button("Replace", "wrep", id(w.ID)), button("Remove", "wdel", id(w.ID))},
			[]tb.InlineButton{button("Cancel", "cancel")},
		),
		Edit: true,
	}
}

func (h *Handlers) coinAddress(user int64, in CoinInput) Reply {
	if in.Address == "" {
		return Reply{Text: "Send the coin contract address."}
	}
	h.fsm.Advance(user, FlowCoin, StepChain, in)
	return Reply{Text: "Which network?", Markup: chainKeyboard("cchain", domain.Chains)}
}

func (h *Handlers) coinChain(ctx context.Context, user int64, chain string) Reply {
	st, ok := h.fsm.Get(user, FlowCoin)
	in, typed := PayloadOf[CoinInput](st)
	if !ok || !typed || in.Address == "" {
		return Reply{Text: "Start again with /add_coin.", Edit: true}
	}
	ch, err := domain.ParseChain(chain)
	if err != nil {
		return h.failure(user, "add_coin", err)
	}
	var coin *domain.Coin
	if in.ReplaceID != 0 {
		coin, err = h.svc.ReplaceCoin(ctx, user, in.ReplaceID, in.Address, ch)
	} else {
		coin, err = h.svc.AddCoin(ctx, user, in.Address, ch)
	}
	h.fsm.End(user, FlowCoin)
	if err != nil {
		return h.failure(user, "add_coin", err)
	}
	return Reply{
		Text:   fmt.Sprintf("Following %s on %s. Set a price alert?", coinName(coin), coin.Chain),
		Markup: trackKeyboard(coin.ID),
		Edit:   true,
	}
}

func (h *Handlers) coinMenu(ctx context.Context, user int64, arg string) Reply {
	cid, _ := strconv.ParseInt(arg, 10, 64)
	t, err := h.svc.Coin(ctx, user, cid)
	if err != nil {
		return h.failure(user, "edit_coin", err)
	}
	markup := trackKeyboard(t.Coin.ID)
	markup.InlineKeyboard = append(markup.InlineKeyboard,
		[]tb.InlineButton{button("Replace", "crep", id(t.Coin.ID)), button("Remove", "cdel", id(t.Coin.ID))},
		[]tb.InlineButton{button("Cancel", "cancel")},
	)
	return Reply{Text: describeCoin(t), Markup: markup, Edit: true}
}

func (h *Handlers) trackPercentage(ctx context.Context, user int64, in TrackInput, text string) Reply {
	pct, err := ParseAmount(text)
	if err != nil {
		return Reply{Text: "Send a positive number, e.g. 25."}
	}
	dir, _ := domain.ParseDirection(in.Direction)
	sub, err := h.svc.TrackCoin(ctx, user, in.CoinID, dir, pct)
	if err != nil {
		if errors.Is(err, service.ErrPriceUnavailable) {
			h.fsm.End(user, FlowTrack)
			return Reply{Text: "No price is available for this coin right now. Try again later."}
		}
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			h.fsm.End(user, FlowTrack)
			return h.failure(user, "track_coin", err)
		}
		return Reply{Text: "That percentage cannot be reached. Send another one, or /cancel."}
	}
	h.fsm.End(user, FlowTrack)
	return Reply{Text: fmt.Sprintf("I will tell you when the price goes %s %s%% from %s$ (%s$).",
		sub.Direction, notify.FormatNumber(sub.Percentage), notify.FormatNumber(sub.StartPrice), notify.FormatNumber(sub.Threshold()))}
}

func (h *Handlers) filterValue(ctx context.Context, user int64, in FilterInput, text string) Reply {
	v, err := parseField(in.Field, text)
	if err != nil {
		return Reply{Text: "Could not read that." + valueHint(in.Field)}
	}
	f, err := h.svc.UpdateAlertFilter(ctx, user, v.applyAlert)
	h.fsm.End(user, FlowFilters)
	if err != nil {
		return h.failure(user, "filters", err)
	}
	return h.filtersReply(f, false)
}

func (h *Handlers) filtersReply(f domain.AlertFilter, edit bool) Reply {
	var b strings.Builder
	b.WriteString("<b>Wallet alert filters</b>\n")
	fmt.Fprintf(&b, "Max price: %s\n", formatBound(f.MaxPrice, "$"))
	fmt.Fprintf(&b, "Min market cap: %s\n", formatBound(f.MinMarketCap, "$"))
	fmt.Fprintf(&b, "Min age: %s\n", FormatAge(f.MinAge))
	fmt.Fprintf(&b, "Max age: %s", FormatAge(f.MaxAge))
	return Reply{
		Text: b.String(),
		Markup: inline(
			[]tb.InlineButton{button("Max price", "f", FieldMaxPrice), button("Min market cap", "f", FieldMinMarketCap)},
			[]tb.InlineButton{button("Min age", "f", FieldMinAge), button("Max age", "f", FieldMaxAge)},
			[]tb.InlineButton{button("Clear all", "fclr")},
		),
		Edit: edit,
	}
}

func (h *Handlers) searchLiquidity(ctx context.Context, user int64, text string) Reply {
	liq, err := ParseAmount(text)
	if err != nil {
		return Reply{Text: "Send a positive number, e.g. 10000."}
	}
	f, err := h.svc.StartSearch(ctx, user, liq)
	if err != nil {
		h.fsm.End(user, FlowSearch)
		return h.failure(user, "search", err)
	}
	h.fsm.Advance(user, FlowSearch, StepBrowse, SearchInput{})
	return h.searchSummary(f)
}

func (h *Handlers) searchValue(ctx context.Context, user int64, in SearchInput, text string) Reply {
	v, err := parseField(in.Field, text)
	if err != nil {
		return Reply{Text: "Could not read that." + valueHint(in.Field)}
	}
	f, err := h.svc.UpdateSearch(ctx, user, v.applySearch)
	if err != nil {
		h.fsm.End(user, FlowSearch)
		return h.failure(user, "search", err)
	}
	h.fsm.Advance(user, FlowSearch, StepBrowse, SearchInput{})
	return h.searchSummary(f)
}

func (h *Handlers) searchSummary(f *domain.ClientFilters) Reply {
	var b strings.Builder
	b.WriteString("<b>Token search</b>\n")
	fmt.Fprintf(&b, "Min liquidity: %s$\n", notify.FormatNumber(f.MinLiquidity))
	fmt.Fprintf(&b, "Price: %s - %s\n", formatBound(f.MinPrice, "$"), formatBound(f.MaxPrice, "$"))
	fmt.Fprintf(&b, "Min market cap: %s\n", formatBound(f.MinMarketCap, "$"))
	fmt.Fprintf(&b, "Age: %s - %s\n", FormatAge(f.MinAge), FormatAge(f.MaxAge))
	fmt.Fprintf(&b, "Matches so far: %d of %d", h.svc.CountMatches(f), len(f.Results))
	return Reply{
		Text: b.String(),
		Markup: inline(
			[]tb.InlineButton{button("Min price", "s", FieldMinPrice), button("Max price", "s", FieldMaxPrice)},
			[]tb.InlineButton{button("Min age", "s", FieldMinAge), button("Max age", "s", FieldMaxAge)},
			[]tb.InlineButton{button("Min market cap", "s", FieldMinMarketCap)},
			[]tb.InlineButton{button("Show results", "sshow"), button("Close", "send")},
		),
	}
}

func (h *Handlers) searchPage(ctx context.Context, user int64) Reply {
	page, more, err := h.svc.NextPage(ctx, user)
	if err != nil {
		return h.failure(user, "search", err)
	}
	if len(page) == 0 {
		return Reply{Text: "No more tokens match. Change the filters or close the search.", Markup: inline(
			[]tb.InlineButton{button("Close", "send")},
		)}
	}
	now := h.now()
	var b strings.Builder
	for i, c := range page {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "<b>%s</b> %s\n", html.EscapeString(c.Symbol), html.EscapeString(c.Name))
		fmt.Fprintf(&b, "Price: %s$ | MCap: %s$ | Liquidity: %s$\n",
			notify.FormatNumber(c.Price), notify.FormatNumber(c.MarketCap), notify.FormatNumber(c.Liquidity))
		if !c.CreatedAt.IsZero() {
			age := now.Sub(c.CreatedAt)
			fmt.Fprintf(&b, "Age: %s\n", FormatAge(&age))
		}
		fmt.Fprintf(&b, "<code>%s</code>", html.EscapeString(c.Address))
	}
	row := []tb.InlineButton{button("Close", "send")}
	if more {
		row = append([]tb.InlineButton{button("Load more", "smore")}, row...)
	}
	return Reply{Text: b.String(), Markup: inline(row)}
}

// failure logs unexpected errors and turns known ones into a user message.
func (h *Handlers) failure(user int64, op string, err error) Reply {
	switch {
	case errors.Is(err, domain.ErrWalletNotFound):
		return Reply{Text: "No transactions found for this wallet."}
	case errors.Is(err, domain.ErrInvalidAddress):
		return Reply{Text: "That is not a valid address."}
	case errors.Is(err, domain.ErrCoinNotFound):
		return Reply{Text: "I could not find this coin on that network."}
	case errors.Is(err, domain.ErrDuplicateSubscription):
		return Reply{Text: "You are already following it."}
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return Reply{Text: "You are not following it."}
	case errors.Is(err, domain.ErrUnsupportedChain):
		return Reply{Text: "That network is not supported here."}
	case errors.Is(err, service.ErrNoSearch):
		return Reply{Text: "No search in progress. Start one with /search."}
	}
	h.log.Error("Handler failed", "op", op, "user", user, "error", err)
	return Reply{Text: "Something went wrong. Try again later."}
}

var errBadValue = errors.New("bad value")

// fieldValue is a parsed filter input. Both pointers nil means clear.
type fieldValue struct {
	field string
	num   *float64
	age   *time.Duration
}

// parseField reads text for field. "-" or "none" clears the field.
func parseField(field, text string) (fieldValue, error) {
	v := fieldValue{field: field}
	if text == "-" || strings.EqualFold(text, "none") {
		return v, nil
	}
	switch field {
	case FieldMinAge, FieldMaxAge:
		d, err := ParseAge(text)
		if err != nil {
			return v, errBadValue
		}
		v.age = &d
	case FieldMaxPrice, FieldMinPrice, FieldMinMarketCap:
		n, err := ParseAmount(text)
		if err != nil {
			return v, errBadValue
		}
		v.num = &n
	default:
		return v, errBadValue
	}
	return v, nil
}

func (v fieldValue) applyAlert(f *domain.AlertFilter) {
	switch v.field {
	case FieldMaxPrice:
		f.MaxPrice = v.num
	case FieldMinMarketCap:
		f.MinMarketCap = v.num
	case FieldMinAge:
		f.MinAge = v.age
	case FieldMaxAge:
		f.MaxAge = v.age
	}
}

func (v fieldValue) applySearch(f *domain.ClientFilters) {
	switch v.field {
	case FieldMinPrice:
		f.MinPrice = v.num
	case FieldMaxPrice:
		f.MaxPrice = v.num
	case FieldMinMarketCap:
		f.MinMarketCap = v.num
	case FieldMinAge:
		f.MinAge = v.age
	case FieldMaxAge:
		f.MaxAge = v.age
	}
}

func valueHint(field string) string {
	switch field {
	case FieldMinAge, FieldMaxAge:
		return " Examples: 15m, 2h, 1d."
	}
	return " Example: 0.5"
}

func describeCoin(t *service.TrackedCoin) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s\n<code>%s</code>\n", coinName(t.Coin), t.Coin.Chain, html.EscapeString(t.Coin.Address))
	if t.Sub.Tracking() {
		fmt.Fprintf(&b, "Alert: %s %s%% from %s$ (at %s$)",
			t.Sub.Direction, notify.FormatNumber(t.Sub.Percentage), notify.FormatNumber(t.Sub.StartPrice), notify.FormatNumber(t.Sub.Threshold()))
		if t.Sub.NotificationSent {
			b.WriteString(", already sent")
		}
	} else {
		b.WriteString("No price alert set.")
	}
	return b.String()
}

func coinName(c *domain.Coin) string {
	if c.Symbol != "" {
		return "<b>" + html.EscapeString(c.Symbol) + "</b>"
	}
	return "<code>" + html.EscapeString(shortAddress(c.Address)) + "</code>"
}

// coinLabel is coinName without markup, for button captions.
func coinLabel(c *domain.Coin) string {
	if c.Symbol != "" {
		return c.Symbol
	}
	return shortAddress(c.Address)
}

func formatBound(v *float64, unit string) string {
	if v == nil {
		return "none"
	}
	return notify.FormatNumber(*v) + unit
}

func shortAddress(a string) string {
	if len(a) <= 12 {
		return a
	}
	return a[:6] + "..." + a[len(a)-4:]
}

func id(v int64) string { return strconv.FormatInt(v, 10) }
