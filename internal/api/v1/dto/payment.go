package dto

// TelegramUpdate is the subset of Telegram's Update object the payment
// webhook cares about. Anything without a successful_payment is acknowledged
// and ignored.
type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message,omitempty"`
}

type TelegramMessage struct {
	MessageID         int64                      `json:"message_id"`
	From              *TelegramUser              `json:"from,omitempty"`
	SuccessfulPayment *TelegramSuccessfulPayment `json:"successful_payment,omitempty"`
}

type TelegramUser struct {
	ID int64 `json:"id"`
}

// TelegramSuccessfulPayment mirrors Telegram's SuccessfulPayment. The charge
// id is the globally unique transaction id; the invoice payload carries the
// package index the bot put there when it sent the invoice.
type TelegramSuccessfulPayment struct {
	Currency                string `json:"currency"`
	TotalAmount             int    `json:"total_amount"`
	InvoicePayload          string `json:"invoice_payload" validate:"required"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id" validate:"required"`
	ProviderPaymentChargeID string `json:"provider_payment_charge_id,omitempty"`
}
