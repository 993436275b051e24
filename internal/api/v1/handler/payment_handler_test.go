package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
	"github.com/mmalakhov777/tauhid2-sub002/internal/service"
)

type fakeQueue struct {
	enqueued []model.PaymentConfirmation
	err      error
}

func (q *fakeQueue) Enqueue(ctx context.Context, c model.PaymentConfirmation) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, c)
	return nil
}

const testWebhookSecret = "hook-secret"

func newPaymentTestHandler(queue *fakeQueue) *PaymentHandler {
	clock := service.ClockFunc(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
	return NewPaymentHandler(queue, clock, testWebhookSecret, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func webhookRequest(body, secret string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/payments/telegram/webhook", strings.NewReader(body))
	if secret != "" {
		r.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
	}
	return r
}

const successfulPaymentUpdate = `{
	"update_id": 42,
	"message": {
		"message_id": 7,
		"from": {"id": 123456},
		"successful_payment": {
			"currency": "XTR",
			"total_amount": 225,
			"invoice_payload": "package:1",
			"telegram_payment_charge_id": "txn-abc"
		}
	}
}`

func TestWebhookRejectsBadSecret(t *testing.T) {
	queue := &fakeQueue{}
	h := newPaymentTestHandler(queue)

	for _, secret := range []string{"", "wrong"} {
		w := httptest.NewRecorder()
		h.handleWebhook(w, webhookRequest(successfulPaymentUpdate, secret))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("secret %q status = %d, want 401", secret, w.Code)
		}
	}
	if len(queue.enqueued) != 0 {
		t.Errorf("enqueued %d confirmations past a bad secret", len(queue.enqueued))
	}
}

func TestWebhookRejectsAllWhenNoSecretConfigured(t *testing.T) {
	queue := &fakeQueue{}
	h := NewPaymentHandler(queue, service.SystemClock{}, "", validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())

	w := httptest.NewRecorder()
	h.handleWebhook(w, webhookRequest(successfulPaymentUpdate, ""))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 when no secret is configured", w.Code)
	}
}

func TestWebhookEnqueuesConfirmation(t *testing.T) {
	queue := &fakeQueue{}
	h := newPaymentTestHandler(queue)

	w := httptest.NewRecorder()
	h.handleWebhook(w, webhookRequest(successfulPaymentUpdate, testWebhookSecret))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("enqueued %d confirmations, want 1", len(queue.enqueued))
	}
	c := queue.enqueued[0]
	if c.UserID != "123456" || c.TransactionID != "txn-abc" || c.PackageIndex != 1 {
		t.Errorf("confirmation = %+v, want user 123456 txn-abc package 1", c)
	}
	if c.ConfirmedAt.IsZero() {
		t.Error("confirmation timestamp not set")
	}
}

func TestWebhookIgnoresNonPaymentUpdates(t *testing.T) {
	queue := &fakeQueue{}
	h := newPaymentTestHandler(queue)

	body := `{"update_id": 43, "message": {"message_id": 8, "from": {"id": 1}, "text": "hello"}}`
	w := httptest.NewRecorder()
	h.handleWebhook(w, webhookRequest(body, testWebhookSecret))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 so Telegram stops redelivering", w.Code)
	}
	if len(queue.enqueued) != 0 {
		t.Errorf("enqueued %d confirmations for a plain message", len(queue.enqueued))
	}
}

func TestWebhookUnparseablePayloadStillEnqueues(t *testing.T) {
	queue := &fakeQueue{}
	h := newPaymentTestHandler(queue)

	body := strings.Replace(successfulPaymentUpdate, "package:1", "premium-upgrade", 1)
	w := httptest.NewRecorder()
	h.handleWebhook(w, webhookRequest(body, testWebhookSecret))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("enqueued %d confirmations, want 1", len(queue.enqueued))
	}
	// The money did arrive; the worker dead-letters the unknown package.
	if queue.enqueued[0].PackageIndex != -1 {
		t.Errorf("package index = %d, want -1 for unparseable payload", queue.enqueued[0].PackageIndex)
	}
}

func TestWebhookRejectsInvalidPayment(t *testing.T) {
	queue := &fakeQueue{}
	h := newPaymentTestHandler(queue)

	body := strings.Replace(successfulPaymentUpdate, `"telegram_payment_charge_id": "txn-abc"`, `"telegram_payment_charge_id": ""`, 1)
	w := httptest.NewRecorder()
	h.handleWebhook(w, webhookRequest(body, testWebhookSecret))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a payment without a charge id", w.Code)
	}
}

func TestWebhookEnqueueFailureReturns500(t *testing.T) {
	queue := &fakeQueue{err: errors.New("queue down")}
	h := newPaymentTestHandler(queue)

	w := httptest.NewRecorder()
	h.handleWebhook(w, webhookRequest(successfulPaymentUpdate, testWebhookSecret))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 so Telegram redelivers", w.Code)
	}
}

func TestParsePackagePayload(t *testing.T) {
	cases := []struct {
		payload string
		want    int
		wantErr bool
	}{
		{"package:0", 0, false},
		{"package:2", 2, false},
		{"package:", 0, true},
		{"package:abc", 0, true},
		{"subscription:1", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := parsePackagePayload(tc.payload)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parsePackagePayload(%q) = %d, want error", tc.payload, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("parsePackagePayload(%q) = %d, %v, want %d", tc.payload, got, err, tc.want)
		}
	}
}
