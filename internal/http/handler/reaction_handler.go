package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/mirefox/wallcast/internal/app/repository"
	"github.com/mirefox/wallcast/internal/app/service"
	"go.uber.org/zap"
)

// ReactionDeps groups dependencies required by the reaction handler.
type ReactionDeps struct {
	Logger      *zap.Logger
	Links       repository.LinkRepository
	Reactions   *service.ReactionService
	Broadcaster *service.Broadcaster
	Tracker     *service.Tracker
}

// ReactionHandler accepts viewer reactions on a link's current content.
type ReactionHandler struct {
	logger      *zap.Logger
	links       repository.LinkRepository
	reactions   *service.ReactionService
	broadcaster *service.Broadcaster
	tracker     *service.Tracker
}

// NewReactionHandler creates a reaction handler with the provided dependencies.
func NewReactionHandler(deps ReactionDeps) *ReactionHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReactionHandler{
		logger:      logger,
		links:       deps.Links,
		reactions:   deps.Reactions,
		broadcaster: deps.Broadcaster,
		tracker:     deps.Tracker,
	}
}

// Register wires the reaction route onto the provided router.
func (h *ReactionHandler) Register(router fiber.Router) {
	router.Post("/api/links/:id/response", h.React)
}

// ReactionRequest represents a viewer's reaction submission.
type ReactionRequest struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// React handles POST /api/links/:id/response
func (h *ReactionHandler) React(c *fiber.Ctx) error {
	id, err := parseLinkID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	var req ReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	kind := model.Reaction(req.Type)
	if kind == model.ReactionNone || !kind.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "type must be one of: accepted, rejected, climaxed",
		})
	}

	ctx := requestContext(c)

	link, err := h.links.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to load link", zap.Error(err), zap.Uint("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	before := *link

	link, err = h.reactions.Process(ctx, link, kind, req.Text)
	if err != nil {
		h.logger.Error("failed to process reaction",
			zap.Error(err), zap.Uint("id", id), zap.String("kind", req.Type))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to process reaction",
		})
	}

	h.tracker.Track(ctx, model.TrackRegular, "link_reaction",
		service.TrackContext{
			Action:  "links#response",
			LinkID:  &link.ID,
			OwnerID: &link.UserID,
			UserID:  link.SetByID,
		},
		map[string]string{"kind": req.Type},
	)

	if h.broadcaster != nil && len(service.ChangedBroadcastFields(&before, link)) > 0 {
		if err := h.broadcaster.BroadcastLink(ctx, link); err != nil {
			h.logger.Error("reaction broadcast failed", zap.Error(err), zap.Uint("id", id))
		}
	}

	return c.JSON(linkToResponse(link))
}
