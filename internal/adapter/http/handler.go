package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bnema/convqueue/internal/adapter/http/templates"
	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/infrastructure/logger"
	"github.com/bnema/convqueue/internal/service"
)

type QueueService interface {
	Add(ctx context.Context, asset *domain.Asset, conversionType domain.ConversionType) (*domain.QueueItem, error)
	Process() bool
	CancelItem(ctx context.Context, id int64) error
	RemoveItem(ctx context.Context, id int64) error
	Remove(ctx context.Context, assetID int64) error
	DeleteOldItems(ctx context.Context, thresholdDays int) (int, error)
	Get(id int64) (*domain.QueueItem, bool)
	GetCurrent() *domain.QueueItem
	Items() []*domain.QueueItem
	Status() service.QueueStatus
	IsWaitingInQueueOrProcessing(assetID int64, conversionType domain.ConversionType) bool
	HasEncoderSetting(asset *domain.Asset) bool
}

type AssetReader interface {
	Get(ctx context.Context, id int64) (*domain.Asset, error)
}

type Handlers struct {
	queue     QueueService
	assets    AssetReader
	purgeDays int
}

func NewHandlers(queue QueueService, assets AssetReader, purgeDays int) *Handlers {
	return &Handlers{
		queue:     queue,
		assets:    assets,
		purgeDays: purgeDays,
	}
}

type queueState struct {
	Status  service.QueueStatus `json:"status"`
	Current *domain.QueueItem   `json:"current"`
	Items   []*domain.QueueItem `json:"items"`
}

func (h *Handlers) state() queueState {
	return queueState{
		Status:  h.queue.Status(),
		Current: h.queue.GetCurrent(),
		Items:   h.queue.Items(),
	}
}

func (h *Handlers) StatusPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		s := h.state()
		if err := templates.StatusPage(s.Status, s.Current, s.Items).Render(r.Context(), w); err != nil {
			logger.Error().Err(err).Msg("status page render failed")
		}
	}
}

func (h *Handlers) QueueState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.state())
	}
}

func (h *Handlers) GetItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		item, found := h.queue.Get(id)
		if !found {
			writeError(w, http.StatusNotFound, "queue item not found")
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

type addItemRequest struct {
	AssetID        int64                 `json:"asset_id"`
	ConversionType domain.ConversionType `json:"conversion_type"`
}

// AddItem enqueues a conversion and starts the worker if it is idle.
func (h *Handlers) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addItemRequest
		r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ConversionType == "" {
			req.ConversionType = domain.ConversionCreateOptimized
		}
		if !req.ConversionType.Valid() {
			writeError(w, http.StatusBadRequest, "unknown conversion type")
			return
		}

		asset, err := h.assets.Get(r.Context(), req.AssetID)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "asset not found")
			return
		}
		if err != nil {
			logger.Error().Err(err).Int64("asset_id", req.AssetID).Msg("asset lookup failed")
			writeError(w, http.StatusInternalServerError, "asset lookup failed")
			return
		}

		if req.ConversionType == domain.ConversionCreateOptimized && !h.queue.HasEncoderSetting(asset) {
			writeError(w, http.StatusUnprocessableEntity, domain.ErrNoEncoderSettings.Error())
			return
		}
		if h.queue.IsWaitingInQueueOrProcessing(asset.ID, req.ConversionType) {
			writeError(w, http.StatusConflict, domain.ErrDuplicateItem.Error())
			return
		}

		item, err := h.queue.Add(r.Context(), asset, req.ConversionType)
		if err != nil {
			logger.Error().Err(err).Int64("asset_id", asset.ID).Msg("enqueue failed")
			writeError(w, http.StatusInternalServerError, "enqueue failed")
			return
		}
		h.queue.Process()

		writeJSON(w, http.StatusCreated, item)
	}
}

func (h *Handlers) CancelItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if _, found := h.queue.Get(id); !found {
			writeError(w, http.StatusNotFound, "queue item not found")
			return
		}

		if err := h.queue.CancelItem(r.Context(), id); err != nil {
			writeError(w, http.StatusServiceUnavailable, "cancel did not complete")
			return
		}

		item, found := h.queue.Get(id)
		if !found {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (h *Handlers) DeleteItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		err := h.queue.RemoveItem(r.Context(), id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "queue item not found")
		case err != nil:
			logger.Error().Err(err).Int64("item_id", id).Msg("remove failed")
			writeError(w, http.StatusInternalServerError, "remove failed")
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func (h *Handlers) RemoveAsset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID, ok := pathID(w, r, "assetId")
		if !ok {
			return
		}

		if err := h.queue.Remove(r.Context(), assetID); err != nil {
			logger.Error().Err(err).Int64("asset_id", assetID).Msg("remove failed")
			writeError(w, http.StatusInternalServerError, "remove failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) Process() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := h.queue.Process()
		writeJSON(w, http.StatusAccepted, map[string]any{
			"started": started,
			"status":  h.queue.Status(),
		})
	}
}

func (h *Handlers) Purge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := h.purgeDays
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
				return
			}
			days = n
		}

		deleted, err := h.queue.DeleteOldItems(r.Context(), days)
		if err != nil {
			logger.Error().Err(err).Int("days", days).Msg("purge failed")
			writeError(w, http.StatusInternalServerError, "purge failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted, "days": days})
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
