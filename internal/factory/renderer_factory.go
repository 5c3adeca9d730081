package factory

import (
	"github.com/mikey/mailview/internal/config"
	"github.com/mikey/mailview/internal/core"
	"github.com/mikey/mailview/internal/render"
	"github.com/mikey/mailview/internal/sanitizer"
	"github.com/mikey/mailview/internal/whitelist"
	"go.uber.org/zap"
)

// RendererFactory creates the sanitize and render pipeline from configuration
type RendererFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRendererFactory creates a new renderer factory
func NewRendererFactory(cfg *config.Config, logger *zap.Logger) *RendererFactory {
	return &RendererFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRenderer creates the renderer with the layout estimator as measurer
func (f *RendererFactory) CreateRenderer() (*render.Renderer, error) {
	renderCfg, err := f.cfg.GetRender()
	if err != nil {
		return nil, err
	}

	opts := render.DefaultOptions()
	opts.Locale = renderCfg.Locale
	opts.MinHeight = renderCfg.MinHeight
	opts.FallbackHeight = renderCfg.FallbackHeight
	opts.SettleDelays = renderCfg.SettleDelays
	opts.ViewportWidth = renderCfg.ViewportWidth

	logger := f.logger.Named("render")
	return render.NewRenderer(opts, render.NewLayoutEstimator(opts.ViewportWidth), logger), nil
}

// CreateSanitizer creates the sanitizer. Its failure notice is localized
// with the renderer's messages.
func (f *RendererFactory) CreateSanitizer(renderer *render.Renderer) *sanitizer.Sanitizer {
	return sanitizer.New(sanitizer.DefaultPolicy(), renderer.Messages().ProcessingFailed, f.logger.Named("sanitizer"))
}

// CreateTransformer creates the post-sanitize transformer
func (f *RendererFactory) CreateTransformer() *render.Transformer {
	return render.NewTransformer(f.logger.Named("transform"))
}

// CreateSenderPolicy creates the trusted sender checker
func (f *RendererFactory) CreateSenderPolicy() core.SenderPolicy {
	domains := f.cfg.GetStringSlice("render.trusted_sender_domains")
	if len(domains) > 0 {
		f.logger.Info("Loaded trusted sender domains", zap.Strings("domains", domains))
	}
	return whitelist.NewChecker(domains, f.logger)
}

// CreateServiceConfig assembles the view service settings
func (f *RendererFactory) CreateServiceConfig() (core.ServiceConfig, error) {
	renderCfg, err := f.cfg.GetRender()
	if err != nil {
		return core.ServiceConfig{}, err
	}
	strategy, err := render.ParseStrategy(renderCfg.Strategy)
	if err != nil {
		return core.ServiceConfig{}, err
	}
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return core.ServiceConfig{}, err
	}

	return core.ServiceConfig{
		CacheEnabled:      cacheCfg.Enabled,
		CacheTTL:          cacheCfg.TTL,
		MaxContentBytes:   renderCfg.MaxContentBytes,
		BlockRemoteImages: renderCfg.BlockRemoteImages,
		DefaultStrategy:   strategy,
		MarkReadOnView:    f.cfg.GetBool("backend.mark_read_on_view"),
	}, nil
}
