package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/mirefox/wallcast/internal/app/repository"
	"github.com/mirefox/wallcast/internal/app/service"
	"go.uber.org/zap"
)

// LinkDeps groups dependencies required by link handlers.
type LinkDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	History     repository.HistoryRepository
}

// LinkHandler implements the link management endpoints.
type LinkHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	history     repository.HistoryRepository
}

// NewLinkHandler creates a link handler with the provided dependencies.
func NewLinkHandler(deps LinkDeps) *LinkHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		logger:      logger,
		linkService: deps.LinkService,
		history:     deps.History,
	}
}

// Register wires link routes onto the provided router.
func (h *LinkHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Get("/:id", h.GetLink)
			links.Patch("/:id", h.UpdateLink)
			links.Post("/:id/ping", h.Ping)
			links.Post("/:id/content", h.SetContent)
			links.Get("/:id/history", h.History)
			links.Get("/:id/searchbase", h.SearchBase)
		}
	}
}

// LinkResponse is the JSON shape for a link.
type LinkResponse struct {
	ID               uint       `json:"id"`
	Online           bool       `json:"online"`
	Terms            string     `json:"terms"`
	Blacklist        string     `json:"blacklist"`
	Theme            string     `json:"theme"`
	MinScore         int        `json:"min_score"`
	Abilities        []string   `json:"abilities"`
	PostURL          string     `json:"post_url"`
	PostThumbnailURL string     `json:"post_thumbnail_url"`
	PostDescription  string     `json:"post_description"`
	ResponseType     string     `json:"response_type"`
	ResponseText     string     `json:"response_text"`
	SetByID          *uint      `json:"set_by_id"`
	Expires          *time.Time `json:"expires"`
	NeverExpires     bool       `json:"never_expires"`
	FriendsOnly      bool       `json:"friends_only"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func linkToResponse(link *model.Link) LinkResponse {
	abilities := make([]string, 0, len(link.Capabilities))
	for _, c := range link.Capabilities {
		abilities = append(abilities, string(c.Name))
	}
	return LinkResponse{
		ID:               link.ID,
		Online:           link.Online(time.Now()),
		Terms:            link.Terms,
		Blacklist:        link.Blacklist,
		Theme:            link.Theme,
		MinScore:         link.MinScore,
		Abilities:        abilities,
		PostURL:          link.PostURL,
		PostThumbnailURL: link.PostThumbnailURL,
		PostDescription:  link.PostDescription,
		ResponseType:     string(link.Reaction),
		ResponseText:     link.ReactionNote,
		SetByID:          link.SetByID,
		Expires:          link.Expires,
		NeverExpires:     link.NeverExpires,
		FriendsOnly:      link.FriendsOnly,
		UpdatedAt:        link.UpdatedAt,
	}
}

func parseLinkID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

// GetLink handles GET /api/links/:id
func (h *LinkHandler) GetLink(c *fiber.Ctx) error {
	id, err := parseLinkID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	link, err := h.linkService.GetLink(requestContext(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.Uint("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get link",
		})
	}

	return c.JSON(linkToResponse(link))
}

// UpdateLinkRequest represents the request body for updating a link.
type UpdateLinkRequest struct {
	Terms        *string    `json:"terms,omitempty"`
	Blacklist    *string    `json:"blacklist,omitempty"`
	Theme        *string    `json:"theme,omitempty"`
	MinScore     *int       `json:"min_score,omitempty"`
	Expires      *time.Time `json:"expires,omitempty"`
	NeverExpires *bool      `json:"never_expires,omitempty"`
	FriendsOnly  *bool      `json:"friends_only,omitempty"`
	ResponseText *string    `json:"response_text,omitempty"`
	Abilities    []string   `json:"abilities,omitempty"`
}

// UpdateLink handles PATCH /api/links/:id
func (h *LinkHandler) UpdateLink(c *fiber.Ctx) error {
	id, err := parseLinkID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	var req UpdateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 300) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "min_score must be between 0 and 300",
		})
	}

	input := service.UpdateLinkInput{
		Terms:        req.Terms,
		Blacklist:    req.Blacklist,
		Theme:        req.Theme,
		MinScore:     req.MinScore,
		Expires:      req.Expires,
		NeverExpires: req.NeverExpires,
		FriendsOnly:  req.FriendsOnly,
		ReactionNote: req.ResponseText,
	}
	if req.Abilities != nil {
		caps := make([]model.Capability, 0, len(req.Abilities))
		for _, name := range req.Abilities {
			capability := model.Capability(name)
			if !capability.Valid() {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "unknown ability: " + name,
				})
			}
			caps = append(caps, capability)
		}
		input.Capabilities = caps
	}

	link, err := h.linkService.UpdateLink(requestContext(c), id, input)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		case errors.Is(err, model.ErrExpiryRequired),
			errors.Is(err, model.ErrThemeMultiTag),
			errors.Is(err, model.ErrThemeOperator):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("failed to update link", zap.Error(err), zap.Uint("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update link",
		})
	}

	return c.JSON(linkToResponse(link))
}

// SetContentRequest represents the request body for setting link content.
type SetContentRequest struct {
	PostURL          string `json:"post_url"`
	PostThumbnailURL string `json:"post_thumbnail_url"`
	PostDescription  string `json:"post_description"`
	SetByID          *uint  `json:"set_by_id"`
}

// SetContent handles POST /api/links/:id/content
func (h *LinkHandler) SetContent(c *fiber.Ctx) error {
	id, err := parseLinkID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	var req SetContentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.PostURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "post_url is required",
		})
	}

	link, err := h.linkService.SetContent(requestContext(c), id, service.SetContentInput{
		PostURL:          req.PostURL,
		PostThumbnailURL: req.PostThumbnailURL,
		PostDescription:  req.PostDescription,
		SetByID:          req.SetByID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to set link content", zap.Error(err), zap.Uint("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to set link content",
		})
	}

	return c.JSON(linkToResponse(link))
}

// Ping handles POST /api/links/:id/ping
func (h *LinkHandler) Ping(c *fiber.Ctx) error {
	id, err := parseLinkID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	link, err := h.linkService.Ping(requestContext(c), id, service.PingInput{
		UserAgent:             c.Get("User-Agent"),
		JoihowClient:          c.Get("joihow"),
		WallpaperEngineClient: c.Get("Wallpaper-Engine-Client"),
	})
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to record ping", zap.Error(err), zap.Uint("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to record ping",
		})
	}

	return c.JSON(fiber.Map{
		"online":    link.Online(time.Now()),
		"last_ping": link.LastPing,
	})
}

// History handles GET /api/links/:id/history
func (h *LinkHandler) History(c *fiber.Ctx) error {
	id, err := parseLinkID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	limit := 20
	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
		limit = parsed
	}

	entries, err := h.history.ListByLink(requestContext(c), id, limit)
	if err != nil {
		h.logger.Error("failed to list history", zap.Error(err), zap.Uint("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list history",
		})
	}

	return c.JSON(fiber.Map{
		"history": entries,
		"count":   len(entries),
	})
}

// SearchBase handles GET /api/links/:id/searchbase; it previews the filter
// suffix this link appends to every query.
func (h *LinkHandler) SearchBase(c *fiber.Ctx) error {
	id, err := parseLinkID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	link, err := h.linkService.GetLink(requestContext(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.Uint("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get link",
		})
	}

	return c.JSON(fiber.Map{
		"search_base": service.SearchBase(link),
	})
}
