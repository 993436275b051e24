package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/api/v1/dto"
	"github.com/mmalakhov777/tauhid2-sub002/internal/middleware"
	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
	"github.com/mmalakhov777/tauhid2-sub002/internal/repository"
	"github.com/mmalakhov777/tauhid2-sub002/internal/service"
)

// BalanceHandler exposes the credit ledger to the chat frontend: the consume
// gate, the balance view, the legacy usage view, and the package catalog.
type BalanceHandler struct {
	ledger         service.BalanceLedger
	usageSvc       service.UsageService
	resolver       service.EntitlementResolver
	catalog        *service.PackageCatalog
	consumeRetries int
	consumeBackoff time.Duration
	logger         zerolog.Logger
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(
	ledger service.BalanceLedger,
	usageSvc service.UsageService,
	resolver service.EntitlementResolver,
	catalog *service.PackageCatalog,
	consumeRetries int,
	consumeBackoff time.Duration,
	logger zerolog.Logger,
) *BalanceHandler {
	return &BalanceHandler{
		ledger:         ledger,
		usageSvc:       usageSvc,
		resolver:       resolver,
		catalog:        catalog,
		consumeRetries: consumeRetries,
		consumeBackoff: consumeBackoff,
		logger:         logger,
	}
}

// RegisterRoutes mounts v1 credit routes. The catalog is public; everything
// else requires a session token.
func (h *BalanceHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/credits", authMw(http.HandlerFunc(h.getBalance)))
	mux.Handle("/credits/consume", authMw(http.HandlerFunc(h.consume)))
	mux.Handle("/credits/usage", authMw(http.HandlerFunc(h.getUsage)))
	mux.Handle("/packages", http.HandlerFunc(h.listPackages))
}

func identityFromContext(r *http.Request) (string, service.Classification, bool) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		return "", "", false
	}
	classification, ok := r.Context().Value(middleware.ClassificationContextKey).(string)
	if !ok || classification == "" {
		return "", "", false
	}
	return userID, service.Classification(classification), true
}

// consume godoc
// @Summary Spend one message credit
// @Description Gate for the chat path: decrements trial first, then paid. Denial is a normal 200 response with allowed=false.
// @Tags credits
// @Produce json
// @Success 200 {object} dto.ConsumeResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "credit check unavailable"
// @Router /credits/consume [post]
func (h *BalanceHandler) consume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, classification, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	outcome, err := h.tryConsumeWithRetry(r, userID, classification)
	if errors.Is(err, service.ErrUnknownClassification) {
		http.Error(w, "unknown classification", http.StatusBadRequest)
		return
	}
	if err != nil {
		// Retries exhausted: fail closed rather than let an unmetered
		// message through.
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Consume failed after retries, denying request")
		http.Error(w, "credit check unavailable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, dto.ConsumeResponseDTO{
		Allowed:        outcome.Allowed,
		UsedTrial:      outcome.UsedTrial,
		TrialRemaining: outcome.TrialRemaining,
		PaidRemaining:  outcome.PaidRemaining,
		Denial:         string(outcome.Denial),
	})
}

func (h *BalanceHandler) tryConsumeWithRetry(r *http.Request, userID string, classification service.Classification) (outcome model.ConsumeOutcome, err error) {
	backoff := h.consumeBackoff
	for attempt := 1; attempt <= h.consumeRetries; attempt++ {
		outcome, err = h.ledger.TryConsume(r.Context(), userID, classification)
		if err == nil || !errors.Is(err, service.ErrStorage) {
			return outcome, err
		}
		h.logger.Warn().Err(err).Int("attempt", attempt).Str("user_id", userID).Msg("Consume hit storage error, retrying")
		select {
		case <-r.Context().Done():
			return outcome, r.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return outcome, err
}

// getBalance godoc
// @Summary Current credit balance
// @Description Read-only view; never triggers a trial reset. A user without a balance record gets a synthesized fresh view.
// @Tags credits
// @Produce json
// @Success 200 {object} dto.BalanceResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /credits [get]
func (h *BalanceHandler) getBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, classification, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	b, err := h.ledger.Peek(r.Context(), userID)
	if errors.Is(err, repository.ErrBalanceNotFound) {
		// Display-only view for a user who has never consumed or paid;
		// no record is created here.
		ent, rerr := h.resolver.Resolve(classification)
		if rerr != nil {
			http.Error(w, "unknown classification", http.StatusBadRequest)
			return
		}
		writeJSON(w, h.logger, dto.BalanceResponseDTO{
			TrialRemaining: ent.TrialCapacity,
			PaidRemaining:  0,
			TrialCapacity:  ent.TrialCapacity,
		})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch balance")
		http.Error(w, "failed to fetch balance", http.StatusInternalServerError)
		return
	}

	lastReset := b.LastResetAt
	writeJSON(w, h.logger, dto.BalanceResponseDTO{
		TrialRemaining: b.TrialRemaining,
		PaidRemaining:  b.PaidRemaining,
		TrialCapacity:  b.TrialCapacity,
		LastResetAt:    &lastReset,
	})
}

// getUsage godoc
// @Summary Legacy rolling usage
// @Description Messages sent in the last 24 hours against the classification's daily maximum.
// @Tags credits
// @Produce json
// @Success 200 {object} dto.UsageResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /credits/usage [get]
func (h *BalanceHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, classification, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	usage, err := h.usageSvc.GetRollingUsage(r.Context(), userID, classification)
	if errors.Is(err, service.ErrUnknownClassification) {
		http.Error(w, "unknown classification", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "failed to fetch usage", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, dto.UsageResponseDTO{
		MessagesLast24h:   usage.MessagesLast24h,
		MaxMessagesPerDay: usage.MaxMessagesPerDay,
	})
}

// listPackages godoc
// @Summary List purchasable credit packages
// @Tags packages
// @Produce json
// @Success 200 {array} dto.PackageResponseDTO
// @Router /packages [get]
func (h *BalanceHandler) listPackages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	packages := h.catalog.List()
	out := make([]dto.PackageResponseDTO, 0, len(packages))
	for i, p := range packages {
		out = append(out, dto.PackageResponseDTO{
			Index:         i,
			Messages:      p.Messages,
			BonusMessages: p.BonusMessages,
			TotalCredits:  p.TotalCredits(),
			PriceStars:    p.PriceStars,
			IsPopular:     p.IsPopular,
			Title:         p.Title,
			Description:   p.Description,
		})
	}
	writeJSON(w, h.logger, out)
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
