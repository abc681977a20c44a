package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EntryBet   EntryKind = "bet"
	EntryPrize EntryKind = "prize"
)

type (
	EntryKind string

	LotteryEntry struct {
		Amount      decimal.Decimal `json:"amount"`
		Date        time.Time       `json:"date"`
		Description string          `json:"description"`
	}

	// Lottery is the single discretionary-spending ledger of the user.
	Lottery struct {
		Record
		Bets   []LotteryEntry `json:"bets"`
		Prizes []LotteryEntry `json:"prizes"`
	}

	// LotteryStats is derived on read and never stored.
	LotteryStats struct {
		TotalBets   decimal.Decimal
		TotalPrizes decimal.Decimal
		Net         decimal.Decimal
		// ROI is nil when nothing was bet.
		ROI              *decimal.Decimal
		OpportunityCost  decimal.Decimal
		CumulativeLosses decimal.Decimal
		BetCount         int
		PrizeCount       int
		AverageBet       decimal.Decimal
		AveragePrize     decimal.Decimal
	}

	HistoryItem struct {
		Kind EntryKind
		LotteryEntry
	}
)

func NewLottery() *Lottery {
	return &Lottery{Record: Record{SyncState: SyncLocal}}
}

func (l *Lottery) RegisterBet(amount decimal.Decimal, description string, now time.Time) (LotteryEntry, error) {
	return l.register(&l.Bets, amount, description, now)
}

func (l *Lottery) RegisterPrize(amount decimal.Decimal, description string, now time.Time) (LotteryEntry, error) {
	return l.register(&l.Prizes, amount, description, now)
}

func (l *Lottery) register(list *[]LotteryEntry, amount decimal.Decimal, description string, now time.Time) (LotteryEntry, error) {
	if err := ValidateAmount(amount); err != nil {
		return LotteryEntry{}, err
	}
	e := LotteryEntry{Amount: amount, Date: now, Description: strings.TrimSpace(description)}
	*list = append(*list, e)
	l.markPending()
	return e, nil
}

// Stats computes the ledger statistics. annualReturnRate is the yield the
// bet money would have earned if saved instead (0.05 for 5%).
func (l *Lottery) Stats(annualReturnRate decimal.Decimal) LotteryStats {
	return computeStats(l.Bets, l.Prizes, annualReturnRate)
}

// StatsInRange limits the statistics to entries dated within [from, to].
func (l *Lottery) StatsInRange(from, to time.Time, annualReturnRate decimal.Decimal) LotteryStats {
	return computeStats(entriesBetween(l.Bets, from, to), entriesBetween(l.Prizes, from, to), annualReturnRate)
}

// History merges bets and prizes newest first. limit <= 0 returns everything.
func (l *Lottery) History(limit int) []HistoryItem {
	items := make([]HistoryItem, 0, len(l.Bets)+len(l.Prizes))
	for _, b := range l.Bets {
		items = append(items, HistoryItem{Kind: EntryBet, LotteryEntry: b})
	}
	for _, p := range l.Prizes {
		items = append(items, HistoryItem{Kind: EntryPrize, LotteryEntry: p})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func entriesBetween(entries []LotteryEntry, from, to time.Time) []LotteryEntry {
	var out []LotteryEntry
	for _, e := range entries {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func sumEntries(entries []LotteryEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

func average(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n)))
}

func computeStats(bets, prizes []LotteryEntry, rate decimal.Decimal) LotteryStats {
	totalBets := sumEntries(bets)
	totalPrizes := sumEntries(prizes)
	net := totalPrizes.Sub(totalBets)

	s := LotteryStats{
		TotalBets:        totalBets,
		TotalPrizes:      totalPrizes,
		Net:              net,
		OpportunityCost:  totalBets.Mul(rate),
		CumulativeLosses: monthlyLosses(bets, prizes),
		BetCount:         len(bets),
		PrizeCount:       len(prizes),
		AverageBet:       average(totalBets, len(bets)),
		AveragePrize:     average(totalPrizes, len(prizes)),
	}
	if totalBets.IsPositive() {
		roi := net.Div(totalBets).Mul(hundred)
		s.ROI = &roi
	}
	return s
}

// monthlyLosses adds up, per calendar month, how much bets exceeded prizes.
// Months with a gain do not offset losing months.
func monthlyLosses(bets, prizes []LotteryEntry) decimal.Decimal {
	type month struct {
		year int
		mon  time.Month
	}
	net := map[month]decimal.Decimal{}
	for _, b := range bets {
		k := month{b.Date.Year(), b.Date.Month()}
		net[k] = net[k].Sub(b.Amount)
	}
	for _, p := range prizes {
		k := month{p.Date.Year(), p.Date.Month()}
		net[k] = net[k].Add(p.Amount)
	}
	losses := decimal.Zero
	for _, v := range net {
		if v.IsNegative() {
			losses = losses.Add(v.Neg())
		}
	}
	return losses
}
