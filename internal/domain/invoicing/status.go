package invoicing

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusVoided        InvoiceStatus = "voided"
)

// IsValid reports whether s is a known invoice status
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoided:
		return true
	}
	return false
}

func (s InvoiceStatus) String() string { return string(s) }

// PaymentStatus is the state of a single payment row.
// completed is the only non-terminal state.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusVoided    PaymentStatus = "voided"
)

func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusRefunded || s == PaymentStatusVoided
}

func (s PaymentStatus) String() string { return string(s) }

// PaymentMethod is how the payer settled a payment
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodCreditDebit  PaymentMethod = "credit_debit"
	PaymentMethodBankPayment  PaymentMethod = "bank_payment"
	PaymentMethodZelle        PaymentMethod = "zelle"
	PaymentMethodVenmo        PaymentMethod = "venmo"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodStripeOnline PaymentMethod = "stripe_online"
	PaymentMethodOther        PaymentMethod = "other"
)

// AllPaymentMethods lists every accepted method
func AllPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCash, PaymentMethodCheck, PaymentMethodCreditDebit, PaymentMethodBankPayment,
		PaymentMethodZelle, PaymentMethodVenmo, PaymentMethodPayPal, PaymentMethodStripeOnline,
		PaymentMethodOther,
	}
}

func (m PaymentMethod) IsValid() bool {
	for _, known := range AllPaymentMethods() {
		if m == known {
			return true
		}
	}
	return false
}

func (m PaymentMethod) String() string { return string(m) }

// DiscountType describes how DiscountValue applies to the subtotal
type DiscountType string

const (
	DiscountTypeNone       DiscountType = "none"
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

func (d DiscountType) IsValid() bool {
	return d == DiscountTypeNone || d == DiscountTypePercentage || d == DiscountTypeFixed
}

// ReceiptMode selects how a receipt is delivered
type ReceiptMode string

const (
	ReceiptModeDownload ReceiptMode = "download"
	ReceiptModeEmail    ReceiptMode = "email"
)

func (m ReceiptMode) IsValid() bool {
	return m == ReceiptModeDownload || m == ReceiptModeEmail
}
