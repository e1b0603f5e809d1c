package assets

import (
	"errors"
	"net/url"
	"path"

	"asset-streamer/core/logger"
	"asset-streamer/core/resource"

	"github.com/docker/go-units"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for cached assets.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the asset and cache routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	pins := app.Group("/assets/pin")
	pins.Post("/*", h.HandlePin)
	pins.Delete("/*", h.HandleUnpin)

	app.Get("/assets/*", h.HandleGet)

	cache := app.Group("/cache")
	cache.Get("/stats", h.HandleStats)
	cache.Post("/reload", h.HandleReloadAll)
	cache.Post("/collect", h.HandleCollect)
	cache.Post("/reload/*", h.HandleReload)
	cache.Delete("/entries/*", h.HandleEvict)
}

// StatsResponse is the cache statistics payload.
type StatsResponse struct {
	resource.Stats
	BudgetHuman string `json:"budget_human"`
	UsedHuman   string `json:"used_human"`
}

// wildcardKey returns the unescaped key of a wildcard route. The key outlives
// the request as a cache key, so it must not alias fiber's request buffer.
func wildcardKey(c *fiber.Ctx) string {
	key := utils.CopyString(c.Params("*"))
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return key
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidKey):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInUse):
		return fiber.StatusConflict
	case errors.Is(err, resource.ErrNotSupported):
		return fiber.StatusNotImplemented
	case errors.Is(err, resource.ErrManagerClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		logger.WithRayID(h.logger, c).Error("Asset request failed", zap.String("path", utils.CopyString(c.Path())), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// HandleGet serves an asset from the cache, loading it on a miss.
// @Summary Get Asset
// @Description Returns the asset content. The response carries an ETag; a matching If-None-Match yields 304.
// @Tags assets
// @Produce octet-stream
// @Param key path string true "Asset key"
// @Success 200 {file} binary "Asset content"
// @Success 304 "Not Modified"
// @Failure 400 {object} map[string]string "Invalid key"
// @Failure 404 {object} map[string]string "Not found"
// @Router /assets/{key} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	key := wildcardKey(c)
	data, etag, err := h.service.Read(c.Context(), key)
	if err != nil {
		return h.fail(c, err)
	}

	quoted := `"` + etag + `"`
	c.Set(fiber.HeaderETag, quoted)
	c.Set(fiber.HeaderCacheControl, "public, max-age=0, must-revalidate")
	if match := c.Get(fiber.HeaderIfNoneMatch); match == quoted || match == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}
	c.Type(path.Ext(key))
	return c.Send(data)
}

// HandlePin pins an asset in the cache.
// @Summary Pin Asset
// @Description Loads the asset and excludes it from eviction until unpinned.
// @Tags assets
// @Produce json
// @Param key path string true "Asset key"
// @Success 200 {object} map[string]string "Pinned"
// @Failure 404 {object} map[string]string "Not found"
// @Router /assets/pin/{key} [post]
func (h *Handler) HandlePin(c *fiber.Ctx) error {
	key := wildcardKey(c)
	if err := h.service.Pin(c.Context(), key); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "pinned", "key": key})
}

// HandleUnpin unpins an asset.
// @Summary Unpin Asset
// @Tags assets
// @Produce json
// @Param key path string true "Asset key"
// @Success 200 {object} map[string]string "Unpinned"
// @Failure 404 {object} map[string]string "Not cached"
// @Router /assets/pin/{key} [delete]
func (h *Handler) HandleUnpin(c *fiber.Ctx) error {
	key := wildcardKey(c)
	if err := h.service.Unpin(key); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "unpinned", "key": key})
}

// HandleStats returns cache statistics.
// @Summary Cache Statistics
// @Tags cache
// @Produce json
// @Success 200 {object} StatsResponse
// @Router /cache/stats [get]
func (h *Handler) HandleStats(c *fiber.Ctx) error {
	s := h.service.Stats()
	return c.JSON(StatsResponse{
		Stats:       s,
		BudgetHuman: units.BytesSize(float64(s.Budget)),
		UsedHuman:   units.BytesSize(float64(s.Used)),
	})
}

// HandleReloadAll reloads every loaded asset.
// @Summary Reload Cache
// @Tags cache
// @Produce json
// @Success 202 {object} map[string]string "Reload queued"
// @Router /cache/reload [post]
func (h *Handler) HandleReloadAll(c *fiber.Ctx) error {
	if err := h.service.ReloadAll(); err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "reloading"})
}

// HandleReload reloads one asset.
// @Summary Reload Asset
// @Tags cache
// @Produce json
// @Param key path string true "Asset key"
// @Success 202 {object} map[string]interface{} "Reload result"
// @Router /cache/reload/{key} [post]
func (h *Handler) HandleReload(c *fiber.Ctx) error {
	key := wildcardKey(c)
	ok, err := h.service.Reload(key)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"key": key, "reloading": ok})
}

// HandleCollect runs an eviction sweep.
// @Summary Collect
// @Description Reclassifies generations and evicts cold assets while over budget.
// @Tags cache
// @Produce json
// @Success 200 {object} StatsResponse
// @Failure 501 {object} map[string]string "Cache runs without a background processor"
// @Router /cache/collect [post]
func (h *Handler) HandleCollect(c *fiber.Ctx) error {
	if err := h.service.Collect(c.Context()); err != nil {
		return h.fail(c, err)
	}
	return h.HandleStats(c)
}

// HandleEvict drops one asset from the cache.
// @Summary Evict Asset
// @Tags cache
// @Produce json
// @Param key path string true "Asset key"
// @Success 200 {object} map[string]string "Evicted"
// @Failure 409 {object} map[string]string "Asset in use"
// @Router /cache/entries/{key} [delete]
func (h *Handler) HandleEvict(c *fiber.Ctx) error {
	key := wildcardKey(c)
	if err := h.service.Evict(key); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "evicted", "key": key})
}
