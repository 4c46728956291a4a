package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/binary-options-sim/internal/config"
	"github.com/binary-options-sim/internal/oracle"
	"github.com/binary-options-sim/internal/store"
)

// Engine runs the trade lifecycle: open (debit), sweep-settle (credit on
// win), and the read paths that must see swept state. All mutations go
// through a single store.Update critical section, so balance checks and
// debits never interleave across callers.
type Engine struct {
	store        *store.Store
	initial      decimal.Decimal
	payoutRatio  decimal.Decimal
	defaultPairs []string
	now          func() time.Time
}

func New(st *store.Store, cfg config.EngineConfig) *Engine {
	return &Engine{
		store:        st,
		initial:      decimal.NewFromFloat(cfg.InitialBalance),
		payoutRatio:  decimal.NewFromFloat(cfg.PayoutRatio),
		defaultPairs: cfg.DefaultPairs,
		now:          time.Now,
	}
}

// SetClock overrides the engine's time source for deterministic tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) nowUnix() float64 {
	return float64(e.now().UnixNano()) / 1e9
}

type OpenResult struct {
	TradeID    string
	NewBalance decimal.Decimal
}

// OpenTrade debits the stake immediately and appends an unsettled trade.
// The stake is at risk for the whole pending duration; the only way balance
// comes back is a winning settlement. A failed open mutates nothing.
func (e *Engine) OpenTrade(username, pair string, side store.TradeSide, amount decimal.Decimal, durationSecs int64) (*OpenResult, error) {
	if username == "" || pair == "" || durationSecs <= 0 || !amount.IsPositive() {
		return nil, ErrInvalidInput
	}
	if side != store.SideBuy && side != store.SideSell {
		return nil, ErrInvalidInput
	}

	var result OpenResult
	err := e.store.Update(func(doc *store.Document) error {
		user := doc.EnsureUser(username, e.initial)
		if user.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}
		user.Balance = user.Balance.Sub(amount)
		e.store.EnsureSeed(doc, pair)

		placedAt := e.nowUnix()
		trade := &store.Trade{
			ID:        uuid.NewString(),
			Pair:      pair,
			Side:      side,
			Amount:    amount,
			PlacedAt:  placedAt,
			ExpiresAt: placedAt + float64(durationSecs),
		}
		user.Trades = append(user.Trades, trade)

		result = OpenResult{TradeID: trade.ID, NewBalance: user.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SettleExpired settles every unsettled trade past its expiry, for all
// users, and returns the resulting settlement events. Idempotent: settled
// trades are never touched again, so repeated and concurrent sweeps are
// safe. Invoked before every read and by the background sweeper.
func (e *Engine) SettleExpired() ([]Settlement, error) {
	now := e.nowUnix()

	var settled []Settlement
	err := e.store.Update(func(doc *store.Document) error {
		settled = settled[:0]
		for username, user := range doc.Users {
			for _, trade := range user.Trades {
				if trade.Settled || now < trade.ExpiresAt {
					continue
				}

				seed := e.store.EnsureSeed(doc, trade.Pair)
				entryPrice := oracle.Price(seed, trade.PlacedAt)
				exitPrice := oracle.Price(seed, trade.ExpiresAt)
				result := decide(trade.Side, entryPrice, exitPrice)

				trade.Settled = true
				trade.ExitPrice = &exitPrice
				trade.Result = result

				if result == store.ResultWin {
					// stake back plus the payout share of the stake
					profit := trade.Amount.Mul(e.payoutRatio)
					user.Balance = user.Balance.Add(trade.Amount).Add(profit)
				}

				settled = append(settled, Settlement{
					Username:   username,
					TradeID:    trade.ID,
					Pair:       trade.Pair,
					Side:       trade.Side,
					Result:     result,
					Amount:     trade.Amount,
					EntryPrice: entryPrice,
					ExitPrice:  exitPrice,
					Balance:    user.Balance,
					SettledAt:  now,
				})
			}
		}
		if len(settled) == 0 {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// decide applies the outcome rule. An exact tie loses for both sides.
func decide(side store.TradeSide, entryPrice, exitPrice float64) store.TradeResult {
	if (side == store.SideBuy && exitPrice > entryPrice) ||
		(side == store.SideSell && exitPrice < entryPrice) {
		return store.ResultWin
	}
	return store.ResultLoss
}

type ActiveTrade struct {
	TradeID    string          `json:"trade_id"`
	Pair       string          `json:"pair"`
	Side       store.TradeSide `json:"side"`
	Amount     decimal.Decimal `json:"amount"`
	PlacedAt   float64         `json:"placed_at"`
	ExpiresAt  float64         `json:"expires_at"`
	Remaining  int64           `json:"remaining"`
	EntryPrice float64         `json:"entry_price"`
}

type UserView struct {
	Balance      decimal.Decimal
	ActiveTrades []ActiveTrade
	PairSeeds    map[string]int64
}

// UserView sweeps, creates the user and the default pair seeds on first
// reference, and returns a snapshot: balance plus every still-unsettled
// trade with its remaining seconds and the entry price recomputed from the
// stored seed. Recomputing (never caching) guarantees the view matches what
// settlement will later compute.
func (e *Engine) UserView(username string) (*UserView, error) {
	if username == "" {
		return nil, ErrInvalidInput
	}
	if _, err := e.SettleExpired(); err != nil {
		return nil, err
	}

	now := e.nowUnix()
	var view *UserView
	err := e.store.Update(func(doc *store.Document) error {
		changed := false
		if _, exists := doc.Users[username]; !exists {
			doc.EnsureUser(username, e.initial)
			changed = true
		}
		for _, pair := range e.defaultPairs {
			if _, exists := doc.PairSeeds[pair]; !exists {
				e.store.EnsureSeed(doc, pair)
				changed = true
			}
		}

		user := doc.Users[username]
		active := make([]ActiveTrade, 0, len(user.Trades))
		for _, trade := range user.Trades {
			if trade.Settled {
				continue
			}
			remaining := int64(trade.ExpiresAt - now)
			if remaining < 0 {
				remaining = 0
			}
			active = append(active, ActiveTrade{
				TradeID:    trade.ID,
				Pair:       trade.Pair,
				Side:       trade.Side,
				Amount:     trade.Amount,
				PlacedAt:   trade.PlacedAt,
				ExpiresAt:  trade.ExpiresAt,
				Remaining:  remaining,
				EntryPrice: oracle.Price(doc.PairSeeds[trade.Pair], trade.PlacedAt),
			})
		}

		seeds := make(map[string]int64, len(doc.PairSeeds))
		for pair, seed := range doc.PairSeeds {
			seeds[pair] = seed
		}

		view = &UserView{
			Balance:      user.Balance,
			ActiveTrades: active,
			PairSeeds:    seeds,
		}
		if !changed {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

type TradeStatus struct {
	Trade   *store.Trade
	Balance decimal.Decimal
}

// LookupTrade sweeps first, so an expired trade is settled by the time it is
// returned.
func (e *Engine) LookupTrade(username, tradeID string) (*TradeStatus, error) {
	if username == "" || tradeID == "" {
		return nil, ErrInvalidInput
	}
	if _, err := e.SettleExpired(); err != nil {
		return nil, err
	}

	var status *TradeStatus
	var lookupErr error
	e.store.View(func(doc *store.Document) {
		user, exists := doc.Users[username]
		if !exists {
			lookupErr = ErrUserNotFound
			return
		}
		for _, trade := range user.Trades {
			if trade.ID == tradeID {
				status = &TradeStatus{Trade: trade.Clone(), Balance: user.Balance}
				return
			}
		}
		lookupErr = ErrTradeNotFound
	})
	if lookupErr != nil {
		return nil, lookupErr
	}
	return status, nil
}

// PriceAt resolves the pair's seed (assigning and persisting it on first
// reference) and returns the deterministic price at ts. Creates no other
// state and always succeeds for a reachable store.
func (e *Engine) PriceAt(pair string, ts float64) (float64, int64, error) {
	seed, err := e.ensureSeed(pair)
	if err != nil {
		return 0, 0, err
	}
	return oracle.Price(seed, ts), seed, nil
}

// PriceHistory samples the pair's deterministic series every step seconds
// over [from, to].
func (e *Engine) PriceHistory(pair string, from, to, step int64) ([]oracle.Point, int64, error) {
	seed, err := e.ensureSeed(pair)
	if err != nil {
		return nil, 0, err
	}
	return oracle.Series(seed, from, to, step), seed, nil
}

func (e *Engine) ensureSeed(pair string) (int64, error) {
	if pair == "" {
		return 0, ErrInvalidInput
	}
	var seed int64
	err := e.store.Update(func(doc *store.Document) error {
		if s, exists := doc.PairSeeds[pair]; exists {
			seed = s
			return store.ErrNoChange
		}
		seed = e.store.EnsureSeed(doc, pair)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seed, nil
}
