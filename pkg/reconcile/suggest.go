package reconcile

import (
	"math"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/debt"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

// SuggestedAmount returns the amount a payment of type t would normally carry.
// Partial payments have no suggestion and return 0.
func SuggestedAmount(e model.PendingExpense, t model.PaymentType) float64 {
	if e.Kind == model.KindSubscription {
		return e.TotalAmount
	}

	outstanding := debt.Outstanding(e)
	switch t {
	case model.PaymentInstallment:
		perInstallment := e.TotalAmount / float64(max(e.Installments, 1))
		return round2(math.Min(outstanding, perInstallment))
	case model.PaymentSettleAll:
		return round2(outstanding)
	default:
		return 0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
