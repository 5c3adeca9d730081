package factory

import (
	"fmt"

	"github.com/mikey/mailview/internal/adapters/backend"
	"github.com/mikey/mailview/internal/adapters/file"
	"github.com/mikey/mailview/internal/config"
	"github.com/mikey/mailview/internal/core"
	"github.com/mikey/mailview/internal/utils"
	"go.uber.org/zap"
)

// SourceFactory creates content sources based on configuration
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
	text   *utils.TextProcessor
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger, text *utils.TextProcessor) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
		text:   text,
	}
}

// CreateContentSource creates the configured content source. Type "none"
// yields nil, which leaves only the raw render endpoints usable.
func (f *SourceFactory) CreateContentSource() (core.ContentSource, error) {
	sourceType := f.cfg.GetSource().Type

	switch sourceType {
	case "backend":
		backendCfg, err := f.cfg.GetBackend()
		if err != nil {
			return nil, err
		}
		f.logger.Info("Using backend content source", zap.String("base_url", backendCfg.BaseURL))
		client, err := backend.NewClient(backend.ClientConfig{
			BaseURL:       backendCfg.BaseURL,
			Token:         backendCfg.Token,
			Timeout:       backendCfg.Timeout,
			DefaultFolder: backendCfg.DefaultFolder,
		}, f.logger.Named("backend"))
		if err != nil {
			return nil, err
		}
		return client, nil
	case "file":
		dir := f.cfg.GetFile().Dir
		f.logger.Info("Using file content source", zap.String("dir", dir))
		return file.NewSource(dir, f.text, f.logger.Named("file")), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}
