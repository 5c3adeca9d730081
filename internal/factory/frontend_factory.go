package factory

import (
	"fmt"

	"github.com/mikey/mailview/internal/adapters/frontend"
	"github.com/mikey/mailview/internal/config"
	"github.com/mikey/mailview/internal/core"
	"github.com/mikey/mailview/internal/ports"
	"github.com/mikey/mailview/internal/utils"
	"go.uber.org/zap"
)

// FrontendFactory creates frontends based on configuration
type FrontendFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.EmailViewService
	text    *utils.TextProcessor
}

// NewFrontendFactory creates a new frontend factory
func NewFrontendFactory(cfg *config.Config, logger *zap.Logger, service *core.EmailViewService, text *utils.TextProcessor) *FrontendFactory {
	return &FrontendFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		text:    text,
	}
}

// CreateFrontend creates a frontend based on the configuration
func (f *FrontendFactory) CreateFrontend() (ports.Frontend, error) {
	frontendType := f.cfg.GetString("server.frontend")

	switch frontendType {
	case "http":
		server := f.cfg.GetServer()
		return frontend.NewHTTPFrontend(f.service, f.logger.Named("http"), frontend.HTTPConfig{
			ListenAddress: server.ListenAddress,
			MaxBodyBytes:  server.MaxBodyBytes,
		}), nil
	case "cli":
		cli, err := frontend.NewCLIFrontend(f.service, f.text, f.logger, frontend.CLIConfig{
			InputFile: f.cfg.GetString("cli.input_file"),
			Output:    f.cfg.GetString("cli.output"),
			Strategy:  f.cfg.GetString("cli.strategy"),
			ClassName: f.cfg.GetString("cli.class_name"),
			Style:     f.cfg.GetString("cli.style"),
			Sender:    f.cfg.GetString("cli.sender"),
		})
		if err != nil {
			return nil, err
		}
		return cli, nil
	default:
		return nil, fmt.Errorf("unsupported frontend type: %s", frontendType)
	}
}
