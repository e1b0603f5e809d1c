package assets

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature mounts the asset and cache routes.
type Feature struct {
	service *Service
	logger  *zap.Logger
}

// NewFeature creates the assets feature over svc.
func NewFeature(svc *Service, logger *zap.Logger) *Feature {
	return &Feature{service: svc, logger: logger}
}

func (f *Feature) Name() string { return "assets" }

func (f *Feature) IsEnabled() bool { return true }

// Load registers the routes.
func (f *Feature) Load(app fiber.Router) error {
	NewHandler(f.service, f.logger).RegisterRoutes(app)
	return nil
}

// Close shuts the cache down, reporting assets still loaded.
func (f *Feature) Close() error {
	return f.service.Manager().Close()
}
