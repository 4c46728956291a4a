package store

import "github.com/shopspring/decimal"

type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

type TradeResult string

const (
	ResultWin  TradeResult = "win"
	ResultLoss TradeResult = "loss"
)

// Trade is a time-boxed directional position. It is created unsettled,
// transitions to settled exactly once, and is never deleted.
type Trade struct {
	ID        string          `json:"trade_id"`
	Pair      string          `json:"pair"`
	Side      TradeSide       `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
	PlacedAt  float64         `json:"placed_at"`
	ExpiresAt float64         `json:"expires_at"`
	Settled   bool            `json:"settled"`
	ExitPrice *float64        `json:"exit_price,omitempty"`
	Result    TradeResult     `json:"result,omitempty"`
}

func (t *Trade) Clone() *Trade {
	var exitPrice *float64
	if t.ExitPrice != nil {
		p := *t.ExitPrice
		exitPrice = &p
	}
	return &Trade{
		ID:        t.ID,
		Pair:      t.Pair,
		Side:      t.Side,
		Amount:    t.Amount,
		PlacedAt:  t.PlacedAt,
		ExpiresAt: t.ExpiresAt,
		Settled:   t.Settled,
		ExitPrice: exitPrice,
		Result:    t.Result,
	}
}

type User struct {
	Balance decimal.Decimal `json:"balance"`
	Trades  []*Trade        `json:"trades"`
}

func (u *User) Clone() *User {
	trades := make([]*Trade, 0, len(u.Trades))
	for _, t := range u.Trades {
		trades = append(trades, t.Clone())
	}
	return &User{
		Balance: u.Balance,
		Trades:  trades,
	}
}

// Document is the whole persisted state: every user plus the pair-seed
// registry shared by the price-query and settlement paths.
type Document struct {
	Users     map[string]*User `json:"users"`
	PairSeeds map[string]int64 `json:"pair_seeds"`
}

func NewDocument() *Document {
	return &Document{
		Users:     make(map[string]*User),
		PairSeeds: make(map[string]int64),
	}
}

func (d *Document) Clone() *Document {
	next := &Document{
		Users:     make(map[string]*User, len(d.Users)),
		PairSeeds: make(map[string]int64, len(d.PairSeeds)),
	}
	for name, u := range d.Users {
		next.Users[name] = u.Clone()
	}
	for pair, seed := range d.PairSeeds {
		next.PairSeeds[pair] = seed
	}
	return next
}

// EnsureUser creates the user record on first reference.
func (d *Document) EnsureUser(username string, initialBalance decimal.Decimal) *User {
	user, exists := d.Users[username]
	if !exists {
		user = &User{Balance: initialBalance, Trades: make([]*Trade, 0)}
		d.Users[username] = user
	}
	return user
}
