package model

import "time"

// DeadLetterMessage is a payment confirmation that could not be processed and
// was parked for operator investigation.
type DeadLetterMessage struct {
	ID        string    `db:"id"`
	Queue     string    `db:"queue"`
	MessageID string    `db:"message_id"`
	Payload   string    `db:"payload"` // raw JSON of the original message
	Reason    string    `db:"reason"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
