package models

// PaymentStatus is the internal payment state of an enrollment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusExpired  PaymentStatus = "expired"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether no further automatic transition applies.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending && s.Valid()
}

// PaymentMethod is the coarse category of the instrument a buyer paid with.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodEWallet      PaymentMethod = "e_wallet"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodRetail       PaymentMethod = "retail"
	PaymentMethodPaylater     PaymentMethod = "paylater"
	PaymentMethodDirectDebit  PaymentMethod = "direct_debit"
	PaymentMethodOther        PaymentMethod = "other"
)
