package payments

import (
	"strings"

	"github.com/kelasvisa/payments/internal/models"
)

var eWallets = map[string]struct{}{
	"QRIS": {}, "OVO": {}, "DANA": {}, "SHOPEEPAY": {}, "LINKAJA": {}, "JENIUS_PAY": {},
}

var paylater = []string{"PEER_TO_PEER", "AKULAKU", "KREDIVO", "INDODANA"}

// MapChannel maps a gateway channel id (e.g. VIRTUAL_ACCOUNT_BCA, QRIS) to
// the coarse payment method stored on the enrollment. Unknown ids map to other.
func MapChannel(channelID string) models.PaymentMethod {
	ch := strings.ToUpper(strings.TrimSpace(channelID))
	if _, ok := eWallets[ch]; ok {
		return models.PaymentMethodEWallet
	}
	switch {
	case ch == "":
		return models.PaymentMethodOther
	case strings.HasPrefix(ch, "VIRTUAL_ACCOUNT"), strings.HasPrefix(ch, "BANK_TRANSFER"):
		return models.PaymentMethodBankTransfer
	case strings.HasPrefix(ch, "CREDIT_CARD"):
		return models.PaymentMethodCreditCard
	case strings.HasPrefix(ch, "EMONEY"), strings.HasPrefix(ch, "WALLET"):
		return models.PaymentMethodEWallet
	case strings.HasPrefix(ch, "ONLINE_TO_OFFLINE"):
		return models.PaymentMethodRetail
	case strings.HasPrefix(ch, "DIRECT_DEBIT"):
		return models.PaymentMethodDirectDebit
	}
	for _, p := range paylater {
		if strings.Contains(ch, p) {
			return models.PaymentMethodPaylater
		}
	}
	return models.PaymentMethodOther
}
