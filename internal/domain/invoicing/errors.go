package invoicing

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
)

func errInvalidState(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf(format, args...))
}

func errInvalidAmount(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(shared.CodeInvalidAmount, fmt.Sprintf(format, args...))
}

func errValidation(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(shared.CodeValidation, fmt.Sprintf(format, args...))
}

var (
	ErrInvoiceVoided         = errInvalidState("invoice is voided and no longer accepts ledger changes")
	ErrPaymentNotCompleted   = errInvalidState("only completed payments can be changed")
	ErrNonPositiveAmount     = errInvalidAmount("payment amount must be greater than zero")
	ErrVoidReasonRequired    = errValidation("a void reason is required")
	ErrInvoiceNotFound       = shared.NewDomainError(shared.CodeNotFound, "invoice not found")
	ErrPaymentNotFound       = shared.NewDomainError(shared.CodeNotFound, "payment not found")
	ErrAdminRequired         = shared.NewDomainError(shared.CodeForbidden, "this action requires ledger administrator rights")
	ErrEmptySplit            = errInvalidAmount("split payment needs at least one entry with a positive amount")
	ErrSubCentAmount         = errInvalidAmount("amount cannot have more than two decimal places")
	ErrCrossCompanyBatch     = errValidation("all invoices in a multi-invoice payment must belong to the same company")
	ErrMixedPayerBatch       = errValidation("all invoices in a multi-invoice payment must belong to the same payer")
	ErrEmptyInvoiceSelection = errValidation("at least one invoice must be selected")
)
