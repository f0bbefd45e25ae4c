// Package api provides HTTP handlers for the API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kioku-srs/kioku/internal/api/shared"
	"github.com/kioku-srs/kioku/internal/domain"
	"github.com/kioku-srs/kioku/internal/platform/logger"
	"github.com/kioku-srs/kioku/internal/service/review"
)

var validate = validator.New()

// ReviewHandler handles review-related HTTP requests.
type ReviewHandler struct {
	service review.Service
	logger  *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(service review.Service, logger *slog.Logger) *ReviewHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ReviewHandler{
		service: service,
		logger:  logger.With(slog.String("component", "review_handler")),
	}
}

// AddCard handles POST /users/{userID}/cards requests.
func (h *ReviewHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req AddCardRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	card, err := h.service.AddCard(r.Context(), userID, req.ItemKey)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("card added",
		slog.String("user_id", userID.String()),
		slog.String("item_key", req.ItemKey))
	shared.RespondWithJSON(w, r, http.StatusCreated, cardToResponse(card))
}

// NextCard handles GET /users/{userID}/cards/next requests.
// Responds 204 when the user has no card due.
func (h *ReviewHandler) NextCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	card, err := h.service.NextCard(r.Context(), userID)
	if errors.Is(err, review.ErrNoCardsDue) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(card))
}

// Preview handles GET /users/{userID}/cards/{itemKey}/preview requests.
// The response maps each rating name to the card it would produce.
func (h *ReviewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	itemKey, ok := h.pathItemKey(w, r)
	if !ok {
		return
	}

	preview, err := h.service.Preview(r.Context(), userID, itemKey)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := make(map[string]CardResponse, len(preview))
	for rating, card := range preview {
		response[rating.String()] = cardToResponse(card)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// SubmitReview handles POST /users/{userID}/cards/{itemKey}/review requests.
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	itemKey, ok := h.pathItemKey(w, r)
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	var rating domain.Rating
	if err := rating.UnmarshalText([]byte(req.Rating)); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(domain.ErrInvalidRating))
		return
	}

	var opts []review.SubmitOption
	if req.IgnoreDue {
		opts = append(opts, review.IgnoreDue())
	}

	result, err := h.service.SubmitRating(r.Context(), userID, itemKey, rating, opts...)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("review submitted",
		slog.String("user_id", userID.String()),
		slog.String("item_key", itemKey),
		slog.String("rating", rating.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, SubmitReviewResponse{
		Card: cardToResponse(result.Card),
		Log:  logToResponse(result.Log),
	})
}

// Retrievability handles GET /users/{userID}/cards/{itemKey}/retrievability.
func (h *ReviewHandler) Retrievability(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	itemKey, ok := h.pathItemKey(w, r)
	if !ok {
		return
	}

	retrievability, err := h.service.Retrievability(r.Context(), userID, itemKey)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RetrievabilityResponse{Retrievability: retrievability})
}

// History handles GET /users/{userID}/reviews requests.
func (h *ReviewHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.History(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := make([]ReviewLogResponse, len(entries))
	for i := range entries {
		response[i] = logToResponse(&entries[i])
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// Reschedule handles POST /users/{userID}/cards/{itemKey}/reschedule requests.
// Replays the card's review history under the current parameters, typically
// after a parameter refit.
func (h *ReviewHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	itemKey, ok := h.pathItemKey(w, r)
	if !ok {
		return
	}

	card, err := h.service.Reschedule(r.Context(), userID, itemKey)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("card rescheduled",
		slog.String("user_id", userID.String()),
		slog.String("item_key", itemKey))
	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(card))
}

// RemoveCard handles DELETE /users/{userID}/cards/{itemKey} requests.
func (h *ReviewHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	itemKey, ok := h.pathItemKey(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveCard(r.Context(), userID, itemKey); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("card removed",
		slog.String("user_id", userID.String()),
		slog.String("item_key", itemKey))
	w.WriteHeader(http.StatusNoContent)
}

// pathUserID extracts and parses the userID path parameter, writing a 400 on
// failure.
func (h *ReviewHandler) pathUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "userID")
	userID, err := uuid.Parse(raw)
	if err != nil || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user ID")
		return uuid.Nil, false
	}
	return userID, true
}

// pathItemKey extracts the itemKey path parameter. Vocabulary keys are often
// non-ASCII, so the raw parameter is path-unescaped first.
func (h *ReviewHandler) pathItemKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "itemKey")
	itemKey, err := url.PathUnescape(raw)
	if err != nil || itemKey == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid item key")
		return "", false
	}
	return itemKey, true
}

// decodeAndValidate decodes the JSON body into dst and validates it, writing
// a 400 on failure.
func (h *ReviewHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return false
	}
	return true
}
