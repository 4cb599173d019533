package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/mirefox/wallcast/internal/app/repository"
	"github.com/mirefox/wallcast/internal/app/service"
	"github.com/mirefox/wallcast/internal/search"
	"go.uber.org/zap"
)

// SearchDeps groups dependencies required by search handlers.
type SearchDeps struct {
	Logger  *zap.Logger
	Results *service.ResultService
	Links   repository.LinkRepository
}

// SearchHandler serves tag searches, with and without a link context.
type SearchHandler struct {
	logger  *zap.Logger
	results *service.ResultService
	links   repository.LinkRepository
}

// NewSearchHandler creates a search handler with the provided dependencies.
func NewSearchHandler(deps SearchDeps) *SearchHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		logger:  logger,
		results: deps.Results,
		links:   deps.Links,
	}
}

// Register wires search routes onto the provided router.
func (h *SearchHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Get("/search", h.Search)
		links := api.Group("/links")
		{
			links.Get("/:id/search", h.LinkSearch)
			links.Get("/:id/posts/:postID", h.LinkPost)
			links.Get("/:id/count", h.LinkPostCount)
		}
	}
}

// Search handles GET /api/search: an anonymous search with no link rules.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	return h.respondWithResults(c, nil)
}

// LinkSearch handles GET /api/links/:id/search: the link's blacklist, theme,
// score floor, and capabilities shape the compiled query.
func (h *SearchHandler) LinkSearch(c *fiber.Ctx) error {
	id, err := parseLinkID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	link, err := h.links.GetByID(requestContext(c), id)
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

	return h.respondWithResults(c, link)
}

func (h *SearchHandler) respondWithResults(c *fiber.Ctx, link *model.Link) error {
	tags := c.Query("tags")
	after := c.Query("after")
	before := c.Query("before")
	limit := service.DefaultResultLimit
	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 150 {
		limit = parsed
	}

	posts, err := h.results.GetResults(requestContext(c), tags, after, before, link, limit)
	if err != nil {
		if errors.Is(err, search.ErrUpstreamUnavailable) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "upstream search unavailable",
			})
		}
		h.logger.Error("search failed", zap.Error(err), zap.String("tags", tags))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "search failed",
		})
	}

	return c.JSON(fiber.Map{
		"posts": posts,
		"count": len(posts),
	})
}

// LinkPost handles GET /api/links/:id/posts/:postID: a single upstream post
// looked up under the link's rules.
func (h *SearchHandler) LinkPost(c *fiber.Ctx) error {
	id, err := parseLinkID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}
	postID, err := strconv.ParseInt(c.Params("postID"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid post id",
		})
	}

	link, err := h.links.GetByID(requestContext(c), id)
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

	post, err := h.results.GetPost(requestContext(c), postID, link)
	if err != nil {
		if errors.Is(err, search.ErrUpstreamUnavailable) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "upstream search unavailable",
			})
		}
		h.logger.Error("post lookup failed", zap.Error(err), zap.Int64("post_id", postID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "post lookup failed",
		})
	}
	if post == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "post not found or filtered for this link",
		})
	}

	return c.JSON(post)
}

// LinkPostCount handles GET /api/links/:id/count: how many posts the link's
// bare filter rules can reach.
func (h *SearchHandler) LinkPostCount(c *fiber.Ctx) error {
	id, err := parseLinkID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	link, err := h.links.GetByID(requestContext(c), id)
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

	count, err := h.results.PossiblePostCount(requestContext(c), link)
	if err != nil {
		if errors.Is(err, search.ErrUpstreamUnavailable) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "upstream search unavailable",
			})
		}
		h.logger.Error("post count failed", zap.Error(err), zap.Uint("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "post count failed",
		})
	}

	return c.JSON(fiber.Map{
		"possible_posts": count,
	})
}
