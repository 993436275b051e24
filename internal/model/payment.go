package model

import "time"

// PaymentConfirmation is a confirmed external payment as delivered by the
// payment collaborator (Telegram Stars). The transaction id is the charge id
// assigned by Telegram and is globally unique; delivery may be retried, so
// consumers must be idempotent on it.
type PaymentConfirmation struct {
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	PackageIndex  int       `json:"package_index"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}
