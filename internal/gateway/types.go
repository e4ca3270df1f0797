package gateway

// Transaction statuses reported by the gateway.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusExpired = "EXPIRED"
	StatusPending = "PENDING"
)

// LineItem is one entry of the checkout order.
type LineItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Order is the order section of a checkout request.
type Order struct {
	Amount            int64      `json:"amount"`
	InvoiceNumber     string     `json:"invoice_number"`
	Currency          string     `json:"currency"`
	CallbackURL       string     `json:"callback_url"`
	CallbackURLCancel string     `json:"callback_url_cancel,omitempty"`
	LineItems         []LineItem `json:"line_items"`
}

// Payment is the payment section of a checkout request.
type Payment struct {
	PaymentDueDate int `json:"payment_due_date"` // minutes
}

// Customer identifies the buyer to the gateway.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// OrderRequest is the body of a create-checkout call.
type OrderRequest struct {
	Order    Order    `json:"order"`
	Payment  Payment  `json:"payment"`
	Customer Customer `json:"customer"`
}

// Session is the hosted checkout created for an invoice.
type Session struct {
	CheckoutURL   string `json:"checkout_url"`
	InvoiceNumber string `json:"invoice_number"`
	TokenID       string `json:"token_id,omitempty"`
	ExpiredDate   string `json:"expired_date,omitempty"`
}

type checkoutResponse struct {
	Message  []string `json:"message"`
	Response struct {
		Order struct {
			InvoiceNumber string `json:"invoice_number"`
		} `json:"order"`
		Payment struct {
			URL         string `json:"url"`
			TokenID     string `json:"token_id"`
			ExpiredDate string `json:"expired_date"`
		} `json:"payment"`
	} `json:"response"`
}

// Notification is the shape of both the order status response and the
// asynchronous payment notification.
type Notification struct {
	Order struct {
		InvoiceNumber string `json:"invoice_number"`
		Amount        int64  `json:"amount"`
	} `json:"order"`
	Transaction struct {
		Status            string `json:"status"`
		Date              string `json:"date"`
		OriginalRequestID string `json:"original_request_id"`
	} `json:"transaction"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
}

// StatusSnapshot is the gateway's view of an invoice at poll time.
type StatusSnapshot struct {
	InvoiceNumber string
	Status        string
	ChannelID     string
	Amount        int64
}

// Snapshot extracts the reconciliation inputs from a notification.
func (n Notification) Snapshot() StatusSnapshot {
	return StatusSnapshot{
		InvoiceNumber: n.Order.InvoiceNumber,
		Status:        n.Transaction.Status,
		ChannelID:     n.Channel.ID,
		Amount:        n.Order.Amount,
	}
}
