package invoicing

import (
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

// WarningCodeInconsistentState tags a manual status that disagrees with the balance
const WarningCodeInconsistentState = "INCONSISTENT_STATE"

// InconsistentStateWarning accompanies a successful manual status change
// whose status the balance does not support. It is not an error.
type InconsistentStateWarning struct {
	Code             string            `json:"code"`
	Message          string            `json:"message"`
	RequestedStatus  InvoiceStatus     `json:"requested_status"`
	ExpectedStatuses []InvoiceStatus   `json:"expected_statuses"`
	TotalPaid        valueobject.Money `json:"total_paid"`
	RemainingBalance valueobject.Money `json:"remaining_balance"`
}

func newInconsistentStateWarning(requested InvoiceStatus, bal Balance) *InconsistentStateWarning {
	expected := ExpectedStatuses(bal)
	names := make([]string, len(expected))
	for i, s := range expected {
		names[i] = string(s)
	}
	return &InconsistentStateWarning{
		Code: WarningCodeInconsistentState,
		Message: fmt.Sprintf("status %s does not match a paid total of %s with %s remaining (expected %s)",
			requested, bal.TotalPaid, bal.RemainingBalance, strings.Join(names, " or ")),
		RequestedStatus:  requested,
		ExpectedStatuses: expected,
		TotalPaid:        bal.TotalPaid,
		RemainingBalance: bal.RemainingBalance,
	}
}
