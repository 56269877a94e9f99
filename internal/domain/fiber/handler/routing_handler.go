package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fadilmartias/ticket-router/internal/dto"
	"github.com/fadilmartias/ticket-router/internal/middleware"
	"github.com/fadilmartias/ticket-router/internal/model"
	"github.com/fadilmartias/ticket-router/internal/queue"
	"github.com/fadilmartias/ticket-router/internal/repository"
	"github.com/fadilmartias/ticket-router/internal/service"
	"github.com/fadilmartias/ticket-router/internal/util"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const notConfiguredReason = "Embedding provider is not configured"

type RoutingUsecaseInterface interface {
	RelatedForTicket(ctx context.Context, ticketID string) (*model.RelatedItems, error)
	SuggestForDescription(ctx context.Context, description string) (*model.RoutingSuggestion, error)
}

type IndexingUsecaseInterface interface {
	NotifyChanged(kind model.EntityKind, id string) bool
}

type QueueStatsReader interface {
	Stats() queue.Stats
}

type RoutingHandler struct {
	routing  RoutingUsecaseInterface
	indexing IndexingUsecaseInterface
	queue    QueueStatsReader
}

func NewRoutingHandler(routing RoutingUsecaseInterface, indexing IndexingUsecaseInterface, queue QueueStatsReader) *RoutingHandler {
	return &RoutingHandler{routing: routing, indexing: indexing, queue: queue}
}

func (h *RoutingHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/tickets/:id/related", h.RelatedForTicket)
	app.Post("/routing/suggest", middleware.RateLimiter(30, 1*time.Minute), h.SuggestRouting)
	app.Post("/entities/:kind/:id/changed", h.EntityChanged)
	app.Get("/queue/stats", h.QueueStats)
}

func (h *RoutingHandler) RelatedForTicket(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid ticket id",
		}, err)
	}

	items, err := h.routing.RelatedForTicket(c.UserContext(), id)
	if errors.Is(err, service.ErrNotConfigured) {
		slog.Warn("related items unavailable", "ticket_id", id, "error", err)
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Message: notConfiguredReason,
			Data:    dto.NeutralRelatedItems(id),
		})
	}
	if err != nil {
		return h.fail(c, "failed to find related items", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get related items",
		Data:    dto.RelatedItemsDTO{Configured: true, RelatedItems: *items},
	})
}

func (h *RoutingHandler) SuggestRouting(c *fiber.Ctx) error {
	var req dto.SuggestRoutingRequest
	if err := c.BodyParser(&req); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid request body",
		}, err)
	}

	suggestion, err := h.routing.SuggestForDescription(c.UserContext(), req.Description)
	if errors.Is(err, service.ErrNotConfigured) {
		slog.Warn("routing suggestion unavailable", "error", err)
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Message: notConfiguredReason,
			Data:    dto.NeutralSuggestion(notConfiguredReason),
		})
	}
	if err != nil {
		return h.fail(c, "failed to suggest routing", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success suggest routing",
		Data:    dto.RoutingSuggestionDTO{Configured: true, RoutingSuggestion: *suggestion},
	})
}

// EntityChanged is the hook the document and ticket services call after a
// create or a text edit. It returns before the embedding is computed.
func (h *RoutingHandler) EntityChanged(c *fiber.Ctx) error {
	kind, err := model.ParseEntityKind(c.Params("kind"))
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "unknown entity kind",
		}, err)
	}
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid entity id",
		}, err)
	}

	queued := h.indexing.NotifyChanged(kind, id)
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusAccepted,
		Message: "Embedding scheduled",
		Data:    dto.EntityChangedDTO{Kind: kind, ID: id, Queued: queued},
	})
}

func (h *RoutingHandler) QueueStats(c *fiber.Ctx) error {
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get queue stats",
		Data:    h.queue.Stats(),
	})
}

func (h *RoutingHandler) fail(c *fiber.Ctx, message string, err error) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrEntityNotFound):
		code, message = fiber.StatusNotFound, "not found"
	case errors.Is(err, service.ErrEmptyText):
		code, message = fiber.StatusBadRequest, "description is required"
	default:
		slog.Error(message, "error", err)
	}
	return util.ErrorResponse(c, util.ErrorResponseFormat{Code: code, Message: message}, err)
}
