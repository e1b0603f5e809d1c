package catalog

import (
	"errors"
	"net/url"

	"asset-streamer/core/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

const defaultListLimit = 100

// Handler handles HTTP requests for the asset catalog.
type Handler struct {
	repo   *Repository
	syncer *Syncer
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler. syncer may be nil.
func NewHandler(repo *Repository, syncer *Syncer, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, syncer: syncer, logger: logger}
}

// RegisterRoutes registers the catalog routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/catalog")
	group.Get("/", h.HandleList)
	group.Post("/sync", h.HandleSync)
	group.Get("/reconcile", h.HandleReconcile)
	group.Get("/*", h.HandleGet)
}

// HandleList lists catalog entries.
// @Summary List Catalog
// @Description Lists catalog entries ordered by key.
// @Tags catalog
// @Produce json
// @Param limit query int false "Maximum entries" default(100)
// @Param offset query int false "Entries to skip"
// @Success 200 {array} Entry
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /catalog [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	offset := c.QueryInt("offset", 0)
	entries, err := h.repo.List(c.Context(), limit, offset)
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Catalog list failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(entries)
}

// HandleGet returns one catalog entry.
// @Summary Get Catalog Entry
// @Tags catalog
// @Produce json
// @Param key path string true "Asset key"
// @Success 200 {object} Entry
// @Failure 404 {object} map[string]string "Not Found"
// @Router /catalog/{key} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	key := utils.CopyString(c.Params("*"))
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	e, err := h.repo.Get(c.Context(), key)
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Catalog lookup failed", zap.String("key", key), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(e)
}

// HandleSync refreshes the catalog from the bucket.
// @Summary Sync Catalog
// @Description Lists the asset bucket and upserts one catalog entry per object.
// @Tags catalog
// @Produce json
// @Success 200 {object} SyncResult
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 501 {object} map[string]string "No bucket configured"
// @Router /catalog/sync [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	if h.syncer == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "catalog sync needs a bucket source"})
	}
	l := logger.WithRayID(h.logger, c)
	l.Info("Triggering catalog sync")
	res, err := h.syncer.Sync(c.Context())
	if err != nil {
		l.Error("Catalog sync failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(res)
}

// HandleReconcile compares the catalog with the bucket.
// @Summary Reconcile Catalog
// @Description Reports keys missing from the catalog, stale entries and size or object mismatches.
// @Tags catalog
// @Produce json
// @Success 200 {object} Report
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 501 {object} map[string]string "No bucket configured"
// @Router /catalog/reconcile [get]
func (h *Handler) HandleReconcile(c *fiber.Ctx) error {
	if h.syncer == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "catalog reconcile needs a bucket source"})
	}
	report, err := h.syncer.Reconcile(c.Context())
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Catalog reconcile failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}
