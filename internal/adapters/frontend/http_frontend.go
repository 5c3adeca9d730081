package frontend

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mikey/mailview/internal/adapters/backend"
	"github.com/mikey/mailview/internal/adapters/file"
	"github.com/mikey/mailview/internal/core"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 5 * time.Second

	// documentCSP applies to the bare isolated document. It allows no script.
	documentCSP = "default-src 'none'; img-src * data: cid:; style-src 'unsafe-inline'; form-action 'none'; " +
		"sandbox allow-same-origin allow-popups allow-popups-to-escape-sandbox"
)

// hostCSP allows only the host script carrying nonce. Remote images are
// dropped when the render blocked any.
func hostCSP(nonce string, remoteBlocked bool) string {
	img := "img-src * data: cid:"
	if remoteBlocked {
		img = "img-src data: cid:"
	}
	script := "script-src 'none'"
	if nonce != "" {
		script = "script-src 'nonce-" + nonce + "'"
	}
	return "default-src 'none'; " + img + "; style-src 'unsafe-inline'; " + script +
		"; frame-src 'self'; base-uri 'none'; form-action 'none'"
}

// HTTPConfig holds the HTTP frontend settings
type HTTPConfig struct {
	ListenAddress string
	MaxBodyBytes  int
}

// HTTPFrontend serves rendered email over HTTP
type HTTPFrontend struct {
	service *core.EmailViewService
	logger  *zap.Logger
	cfg     HTTPConfig
	app     *fiber.App
}

// NewHTTPFrontend creates the HTTP frontend and registers its routes
func NewHTTPFrontend(service *core.EmailViewService, logger *zap.Logger, cfg HTTPConfig) *HTTPFrontend {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &HTTPFrontend{
		service: service,
		logger:  logger,
		cfg:     cfg,
	}

	fiberCfg := fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          f.handleError,
	}
	if cfg.MaxBodyBytes > 0 {
		fiberCfg.BodyLimit = cfg.MaxBodyBytes
	}
	f.app = fiber.New(fiberCfg)
	f.registerRoutes()
	return f
}

// App exposes the fiber app, mainly for tests
func (f *HTTPFrontend) App() *fiber.App {
	return f.app
}

func (f *HTTPFrontend) registerRoutes() {
	f.app.Get("/health", f.health)

	api := f.app.Group("/api")
	api.Post("/render", f.renderJSON)
	api.Post("/render/document", f.renderDocument)
	api.Get("/emails", f.listEmails)
	api.Get("/emails/:id/view", f.viewEmail)
}

// Start starts serving in the background
func (f *HTTPFrontend) Start() error {
	f.logger.Info("HTTP frontend starting", zap.String("address", f.cfg.ListenAddress))

	go func() {
		if err := f.app.Listen(f.cfg.ListenAddress); err != nil {
			f.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down, waiting for in-flight requests
func (f *HTTPFrontend) Stop() error {
	f.logger.Info("HTTP frontend stopping")
	return f.app.ShutdownWithTimeout(shutdownTimeout)
}

func (f *HTTPFrontend) health(c *fiber.Ctx) error {
	if err := f.service.CheckSource(c.UserContext()); err != nil {
		f.logger.Warn("Content source unavailable", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "source": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (f *HTTPFrontend) renderJSON(c *fiber.Ctx) error {
	req, err := parseRenderRequest(c)
	if err != nil {
		return err
	}

	rendered, err := f.service.Render(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(rendered)
}

func (f *HTTPFrontend) renderDocument(c *fiber.Ctx) error {
	req, err := parseRenderRequest(c)
	if err != nil {
		return err
	}
	req.Strategy = "isolated"

	rendered, err := f.service.Render(c.UserContext(), req)
	if err != nil {
		return err
	}

	body := rendered.Document
	if body == "" {
		// Placeholder or failure notice
		body = rendered.Markup
	}
	c.Set(fiber.HeaderContentSecurityPolicy, documentCSP)
	return sendHTML(c, body)
}

func (f *HTTPFrontend) viewEmail(c *fiber.Ctx) error {
	rendered, err := f.service.View(c.UserContext(), c.Params("id"), core.ViewOptions{
		Folder:    c.Query("folder"),
		Strategy:  c.Query("strategy"),
		ClassName: c.Query("className"),
		Style:     c.Query("style"),
	})
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentSecurityPolicy, hostCSP(rendered.ScriptNonce, rendered.RemoteBlocked > 0))
	return sendHTML(c, rendered.Markup)
}

// emailSummary is one entry of the listing response
type emailSummary struct {
	ID        string    `json:"id"`
	Folder    string    `json:"folder"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Preview   string    `json:"preview"`
	Date      time.Time `json:"date"`
	Read      bool      `json:"read"`
	Important bool      `json:"important"`
	Size      int64     `json:"size"`
}

func (f *HTTPFrontend) listEmails(c *fiber.Ctx) error {
	list, err := f.service.ListEmails(c.UserContext(), c.Query("folder"))
	if err != nil {
		return err
	}

	emails := make([]emailSummary, 0, len(list.Emails))
	for _, e := range list.Emails {
		emails = append(emails, emailSummary{
			ID:        e.ID,
			Folder:    e.Folder,
			Sender:    e.Sender,
			Recipient: e.Recipient,
			Subject:   e.Subject,
			Preview:   e.Preview,
			Date:      e.Date,
			Read:      e.Read,
			Important: e.Important,
			Size:      e.Size,
		})
	}
	return c.JSON(fiber.Map{"emails": emails, "folderCounts": list.FolderCounts})
}

func parseRenderRequest(c *fiber.Ctx) (*core.RenderRequest, error) {
	var req core.RenderRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	return &req, nil
}

func sendHTML(c *fiber.Ctx, body string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderReferrerPolicy, "no-referrer")
	return c.SendString(body)
}

// handleError maps service errors to status codes
func (f *HTTPFrontend) handleError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		f.logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	} else {
		f.logger.Debug("Request rejected",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err))
	}

	message := err.Error()
	switch {
	case status == fiber.StatusInternalServerError:
		message = "internal error"
	case backend.IsUnauthorized(err):
		message = "content backend rejected credentials"
	case status == fiber.StatusBadGateway:
		message = "content backend unavailable"
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func statusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, core.ErrEmailNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, core.ErrInvalidRequest), errors.Is(err, file.ErrInvalidID):
		return fiber.StatusBadRequest
	case errors.Is(err, core.ErrNoSource):
		return fiber.StatusNotImplemented
	default:
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			return fiber.StatusBadGateway
		}
		return fiber.StatusInternalServerError
	}
}
