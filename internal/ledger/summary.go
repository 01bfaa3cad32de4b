package ledger

import (
	"github.com/shopspring/decimal"

	"ticketera/internal/payload"
)

type TicketSummary struct {
	Total   int `json:"total"`
	Entered int `json:"entered"`
	Pending int `json:"pending"`
}

type BucketSummary struct {
	TotalUnits    int             `json:"totalUnits"`
	RedeemedUnits int             `json:"redeemedUnits"`
	PendingUnits  int             `json:"pendingUnits"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	RedeemedValue decimal.Decimal `json:"redeemedValue"`
}

type Summary struct {
	Tickets    TicketSummary `json:"tickets"`
	Food       BucketSummary `json:"food"`
	Activities BucketSummary `json:"activities"`
}

// Summary aggregates the current state. It is recomputed on every call.
func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum Summary
	if l.session == nil {
		return sum
	}

	sum.Tickets.Total = len(l.tickets)
	for _, entered := range l.tickets {
		if entered {
			sum.Tickets.Entered++
		}
	}
	sum.Tickets.Pending = sum.Tickets.Total - sum.Tickets.Entered

	sum.Food = summarize(l.session.Food, l.food)
	sum.Activities = summarize(l.session.Activities, l.activities)
	return sum
}

func summarize(items []payload.Redeemable, remaining map[string]int) BucketSummary {
	b := BucketSummary{Subtotal: decimal.Zero, RedeemedValue: decimal.Zero}
	for _, item := range items {
		left := remaining[item.ID]
		redeemed := item.PurchasedQuantity - left

		b.TotalUnits += item.PurchasedQuantity
		b.PendingUnits += left
		b.RedeemedUnits += redeemed
		b.Subtotal = b.Subtotal.Add(item.Subtotal)
		b.RedeemedValue = b.RedeemedValue.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(redeemed))))
	}
	return b
}
