package frontend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mikey/mailview/internal/adapters/file"
	"github.com/mikey/mailview/internal/core"
	"github.com/mikey/mailview/internal/utils"
	"go.uber.org/zap"
)

// Output modes for the CLI frontend
const (
	OutputFragment = "fragment"
	OutputDocument = "document"
	OutputHost     = "host"
	OutputJSON     = "json"
)

// ErrUnknownOutput is returned for an unsupported output mode
var ErrUnknownOutput = errors.New("unknown output mode")

// CLIConfig holds the CLI frontend settings
type CLIConfig struct {
	InputFile string
	Output    string
	Strategy  string
	ClassName string
	Style     string
	Sender    string
}

// CLIFrontend renders one email from a file or stdin and prints it
type CLIFrontend struct {
	service *core.EmailViewService
	text    *utils.TextProcessor
	logger  *zap.Logger
	cfg     CLIConfig
	in      io.Reader
	out     io.Writer
}

// NewCLIFrontend creates a new CLI frontend
func NewCLIFrontend(service *core.EmailViewService, text *utils.TextProcessor, logger *zap.Logger, cfg CLIConfig) (*CLIFrontend, error) {
	switch cfg.Output {
	case "":
		cfg.Output = OutputHost
	case OutputFragment, OutputDocument, OutputHost, OutputJSON:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutput, cfg.Output)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if text == nil {
		text = utils.NewTextProcessor(logger)
	}

	return &CLIFrontend{
		service: service,
		text:    text,
		logger:  logger,
		cfg:     cfg,
		in:      os.Stdin,
		out:     os.Stdout,
	}, nil
}

// Start reads the input, renders it and writes the result
func (f *CLIFrontend) Start() error {
	data, err := f.readInput()
	if err != nil {
		return err
	}

	req, err := f.buildRequest(data)
	if err != nil {
		return err
	}

	rendered, err := f.service.Render(context.Background(), req)
	if err != nil {
		f.logger.Error("Failed to render email", zap.Error(err))
		return err
	}

	f.logger.Info("Rendered email",
		zap.String("status", rendered.Status),
		zap.String("strategy", string(rendered.Strategy)),
		zap.Int("height", rendered.Height),
		zap.Int("remote_resources", rendered.RemoteResources),
		zap.Int("remote_blocked", rendered.RemoteBlocked),
		zap.Bool("truncated", rendered.Truncated))

	return f.write(rendered)
}

// Stop is a no-op for the CLI frontend
func (f *CLIFrontend) Stop() error {
	return nil
}

func (f *CLIFrontend) readInput() ([]byte, error) {
	if f.cfg.InputFile == "" {
		f.logger.Info("Reading email from stdin")
		data, err := io.ReadAll(f.in)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	f.logger.Info("Reading email from file", zap.String("file", f.cfg.InputFile))
	data, err := os.ReadFile(f.cfg.InputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}

func (f *CLIFrontend) buildRequest(data []byte) (*core.RenderRequest, error) {
	req := &core.RenderRequest{
		Sender:    f.cfg.Sender,
		ClassName: f.cfg.ClassName,
		Style:     f.cfg.Style,
		Strategy:  f.cfg.Strategy,
	}
	switch f.cfg.Output {
	case OutputFragment:
		req.Strategy = "inline"
	case OutputDocument:
		req.Strategy = "isolated"
	}

	if file.LooksLikeMIME(data) {
		msg, err := file.ParseMessage(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		f.logger.Debug("Parsed MIME message",
			zap.String("from", msg.Sender),
			zap.String("subject", msg.Subject))
		req.Content = msg.Body
		req.ContentType = msg.ContentType
		if req.Sender == "" {
			req.Sender = msg.Sender
		}
		return req, nil
	}

	content, err := f.text.DecodeHTML(data, "")
	if err != nil {
		return nil, err
	}
	req.Content = content
	return req, nil
}

func (f *CLIFrontend) write(rendered *core.RenderedEmail) error {
	var err error
	switch f.cfg.Output {
	case OutputJSON:
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		err = enc.Encode(rendered)
	case OutputDocument:
		body := rendered.Document
		if body == "" {
			body = rendered.Markup
		}
		_, err = fmt.Fprintln(f.out, body)
	default:
		_, err = fmt.Fprintln(f.out, rendered.Markup)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
