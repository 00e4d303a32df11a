package invoicing

// NextStatus applies the balance-driven precedence rules to the current
// status:
//
//  1. voided never changes
//  2. fully covered with at least one completed payment -> paid
//  3. any completed payment -> partially_paid
//  4. nothing paid -> paid/partially_paid/overdue fall back to sent;
//     draft and sent stay where they are
func NextStatus(current InvoiceStatus, bal Balance) InvoiceStatus {
	if current == InvoiceStatusVoided {
		return current
	}
	if bal.IsSettled() {
		return InvoiceStatusPaid
	}
	if bal.TotalPaid.IsPositive() {
		return InvoiceStatusPartiallyPaid
	}
	switch current {
	case InvoiceStatusPaid, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return InvoiceStatusSent
	}
	return current
}

// ExpectedStatuses lists the statuses consistent with a balance. A manual
// status outside this set is accepted but reported as inconsistent. Forcing
// overdue is an administrator call and is consistent with any open balance.
func ExpectedStatuses(bal Balance) []InvoiceStatus {
	switch {
	case bal.IsSettled():
		return []InvoiceStatus{InvoiceStatusPaid}
	case bal.TotalPaid.IsPositive():
		return []InvoiceStatus{InvoiceStatusPartiallyPaid, InvoiceStatusOverdue}
	default:
		return []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusOverdue}
	}
}

// StatusTransition records what a reconcile pass changed. Implied is the
// status the balance calls for; it differs from To only when OverrideKept.
type StatusTransition struct {
	From          InvoiceStatus
	To            InvoiceStatus
	Implied       InvoiceStatus
	PaidAtSet     bool
	OverrideReset bool
	OverrideKept  bool
}

// Changed reports whether the status moved
func (t StatusTransition) Changed() bool {
	return t.From != t.To
}
