package models

import "github.com/shopspring/decimal"

// Balance is the reconciliation of an enrollment's payments against the price
// of its course. Outstanding is never negative.
type Balance struct {
	CoursePrice decimal.Decimal `json:"coursePrice"`
	TotalPaid   decimal.Decimal `json:"totalPaid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	IsFullyPaid bool            `json:"isFullyPaid"`
}

// ComputeBalance reconciles a course price with the individual payment amounts,
// for callers that already hold the payment list.
func ComputeBalance(coursePrice decimal.Decimal, payments []decimal.Decimal) Balance {
	total := decimal.Zero
	for _, amount := range payments {
		total = total.Add(amount)
	}
	return BalanceFromTotal(coursePrice, total)
}

// BalanceFromTotal reconciles a course price with an already summed total,
// as returned by SQL aggregates.
func BalanceFromTotal(coursePrice, totalPaid decimal.Decimal) Balance {
	outstanding := coursePrice.Sub(totalPaid)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}
	return Balance{
		CoursePrice: coursePrice,
		TotalPaid:   totalPaid,
		Outstanding: outstanding,
		IsFullyPaid: !outstanding.IsPositive(),
	}
}

// Accepts reports whether amount can be recorded without the total exceeding
// the course price.
func (b Balance) Accepts(amount decimal.Decimal) bool {
	return b.TotalPaid.Add(amount).LessThanOrEqual(b.CoursePrice)
}

// Add returns the balance after recording amount.
func (b Balance) Add(amount decimal.Decimal) Balance {
	return BalanceFromTotal(b.CoursePrice, b.TotalPaid.Add(amount))
}

// Sub returns the balance after removing a previously recorded amount.
func (b Balance) Sub(amount decimal.Decimal) Balance {
	return BalanceFromTotal(b.CoursePrice, b.TotalPaid.Sub(amount))
}

// BalanceTotals sums several balances, as shown on student summaries and the
// dashboard.
type BalanceTotals struct {
	TotalDue         decimal.Decimal `json:"totalDue"`
	TotalPaid        decimal.Decimal `json:"totalPaid"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	FullyPaidCount   int             `json:"fullyPaidCount"`
	PendingCount     int             `json:"pendingCount"`
}

// Include folds b into the totals.
func (t *BalanceTotals) Include(b Balance) {
	t.TotalDue = t.TotalDue.Add(b.CoursePrice)
	t.TotalPaid = t.TotalPaid.Add(b.TotalPaid)
	t.TotalOutstanding = t.TotalOutstanding.Add(b.Outstanding)
	if b.IsFullyPaid {
		t.FullyPaidCount++
	} else {
		t.PendingCount++
	}
}
