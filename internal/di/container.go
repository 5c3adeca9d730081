package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mailview/internal/config"
	"github.com/mikey/mailview/internal/core"
	"github.com/mikey/mailview/internal/factory"
	"github.com/mikey/mailview/internal/logging"
	"github.com/mikey/mailview/internal/ports"
	"github.com/mikey/mailview/internal/render"
	"github.com/mikey/mailview/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}
	return container, nil
}

// providePipeline registers everything below config and logger. Both the
// server and the CLI containers share it.
func providePipeline(container *dig.Container) error {
	// Register factories
	providers := []any{
		factory.NewSourceFactory,
		factory.NewCacheFactory,
		factory.NewRendererFactory,
		factory.NewFrontendFactory,
		utils.NewTextProcessor,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}

	// Register content source
	if err := container.Provide(func(f *factory.SourceFactory) (core.ContentSource, error) {
		return f.CreateContentSource()
	}); err != nil {
		return err
	}

	// Register render cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.RenderCache, error) {
		return f.CreateRenderCache()
	}); err != nil {
		return err
	}

	// Register sanitize and render pipeline
	if err := container.Provide(func(f *factory.RendererFactory) (*render.Renderer, error) {
		return f.CreateRenderer()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(r *render.Renderer) core.ContentRenderer {
		return r
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.RendererFactory, r *render.Renderer) core.ContentSanitizer {
		return f.CreateSanitizer(r)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.RendererFactory) core.ContentTransformer {
		return f.CreateTransformer()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.RendererFactory) core.SenderPolicy {
		return f.CreateSenderPolicy()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.RendererFactory) (core.ServiceConfig, error) {
		return f.CreateServiceConfig()
	}); err != nil {
		return err
	}

	// Register email view service
	if err := container.Provide(core.NewEmailViewService); err != nil {
		return err
	}

	// Register frontend
	if err := container.Provide(func(f *factory.FrontendFactory, logger *zap.Logger) (ports.Frontend, error) {
		fe, err := f.CreateFrontend()
		if err != nil {
			logger.Error("Failed to create frontend", zap.Error(err))
		}
		return fe, err
	}); err != nil {
		return err
	}

	return nil
}
