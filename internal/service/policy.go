package service

import "time"

// Policy сроки и лимиты жизненного цикла.
type Policy struct {
	AcceptanceWindow time.Duration
	ReviewPeriod     time.Duration
	AutoRelease      bool
	MaxRevisions     int
	RevisionTimeout  time.Duration
	ApprovalWindow   time.Duration
	// CancelRefundPercent доля возврата покупателю при отмене заказа в работе, 1..100.
	CancelRefundPercent int
}

func DefaultPolicy() Policy {
	return Policy{
		AcceptanceWindow: 24 * time.Hour,
		ReviewPeriod:     72 * time.Hour,
		AutoRelease:      true,
		MaxRevisions:     2,
		RevisionTimeout:  24 * time.Hour,
		ApprovalWindow:   72 * time.Hour,

		CancelRefundPercent: 100,
	}
}

func (p Policy) buyerCancelRefund() int {
	if p.CancelRefundPercent < 1 || p.CancelRefundPercent > 100 {
		return 100
	}
	return p.CancelRefundPercent
}
