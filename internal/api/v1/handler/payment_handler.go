package handler

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/api/v1/dto"
	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
	"github.com/mmalakhov777/tauhid2-sub002/internal/service"
)

// telegramSecretHeader carries the secret token Telegram echoes back on every
// webhook delivery when the webhook was registered with one.
const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// payloadPrefix is what the bot puts in invoice_payload when it sends an
// invoice, e.g. "package:1".
const payloadPrefix = "package:"

// PaymentHandler ingests Telegram Stars payment webhooks. It verifies the
// secret token, extracts the successful payment, and durably enqueues a
// confirmation for the worker. Telegram retries deliveries that don't get a
// 2xx, and the ledger's idempotency record absorbs the duplicates that
// produces, so acknowledging early is safe.
type PaymentHandler struct {
	queue         service.ConfirmationQueue
	clock         service.Clock
	webhookSecret string
	validate      *validator.Validate
	logger        zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(queue service.ConfirmationQueue, clock service.Clock, webhookSecret string, v *validator.Validate, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		queue:         queue,
		clock:         clock,
		webhookSecret: webhookSecret,
		validate:      v,
		logger:        logger,
	}
}

// RegisterRoutes mounts the payment webhook. It is authenticated by the
// secret token, not by a session JWT.
func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/payments/telegram/webhook", http.HandlerFunc(h.handleWebhook))
}

// handleWebhook godoc
// @Summary Telegram payment webhook
// @Description Accepts Telegram Update objects; successful payments are queued for crediting.
// @Tags payments
// @Accept json
// @Success 200 {string} string "ok"
// @Failure 401 {string} string "invalid secret token"
// @Failure 400 {string} string "invalid update payload"
// @Router /payments/telegram/webhook [post]
func (h *PaymentHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get(telegramSecretHeader)), []byte(h.webhookSecret)) != 1 {
		h.logger.Warn().Msg("Telegram webhook with bad secret token rejected")
		http.Error(w, "invalid secret token", http.StatusUnauthorized)
		return
	}

	var update dto.TelegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Error().Err(err).Msg("Invalid Telegram update payload")
		http.Error(w, "invalid update payload", http.StatusBadRequest)
		return
	}

	// Everything that is not a successful payment belongs to the bot, not to
	// the ledger; acknowledge so Telegram does not redeliver it here.
	if update.Message == nil || update.Message.SuccessfulPayment == nil || update.Message.From == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	payment := update.Message.SuccessfulPayment
	if err := h.validate.Struct(payment); err != nil {
		h.logger.Error().Err(err).Int64("update_id", update.UpdateID).Msg("Successful payment failed validation")
		http.Error(w, "invalid successful_payment", http.StatusBadRequest)
		return
	}

	packageIndex, err := parsePackagePayload(payment.InvoicePayload)
	if err != nil {
		// Money was received for something we cannot map; park it for the
		// worker to dead-letter rather than drop it silently.
		h.logger.Error().Err(err).
			Str("invoice_payload", payment.InvoicePayload).
			Str("transaction_id", payment.TelegramPaymentChargeID).
			Msg("Unparseable invoice payload on successful payment")
		packageIndex = -1
	}

	confirmation := model.PaymentConfirmation{
		UserID:        strconv.FormatInt(update.Message.From.ID, 10),
		TransactionID: payment.TelegramPaymentChargeID,
		PackageIndex:  packageIndex,
		ConfirmedAt:   h.clock.Now(),
	}
	if err := h.queue.Enqueue(r.Context(), confirmation); err != nil {
		h.logger.Error().Err(err).
			Str("transaction_id", confirmation.TransactionID).
			Msg("Failed to enqueue payment confirmation")
		// Non-2xx makes Telegram redeliver; the queue write is the one thing
		// that must succeed before we acknowledge.
		http.Error(w, "failed to accept payment", http.StatusInternalServerError)
		return
	}

	h.logger.Info().
		Str("user_id", confirmation.UserID).
		Str("transaction_id", confirmation.TransactionID).
		Int("package_index", confirmation.PackageIndex).
		Msg("Payment confirmation accepted")
	w.WriteHeader(http.StatusOK)
}

func parsePackagePayload(payload string) (int, error) {
	raw, ok := strings.CutPrefix(payload, payloadPrefix)
	if !ok {
		return 0, fmt.Errorf("payload %q missing %q prefix", payload, payloadPrefix)
	}
	return strconv.Atoi(raw)
}
