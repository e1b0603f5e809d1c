package catalog

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature mounts the catalog routes. It is disabled without a database.
type Feature struct {
	repo   *Repository
	syncer *Syncer
	logger *zap.Logger
}

// NewFeature creates the catalog feature. repo may be nil when no database
// is configured.
func NewFeature(repo *Repository, syncer *Syncer, logger *zap.Logger) *Feature {
	return &Feature{repo: repo, syncer: syncer, logger: logger}
}

func (f *Feature) Name() string { return "catalog" }

func (f *Feature) IsEnabled() bool { return f.repo != nil }

// Load registers the routes.
func (f *Feature) Load(app fiber.Router) error {
	NewHandler(f.repo, f.syncer, f.logger).RegisterRoutes(app)
	return nil
}
