package api

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/broker-statement-parser/internal/extractor"
	"github.com/insightdelivered/broker-statement-parser/internal/logger"
	"github.com/insightdelivered/broker-statement-parser/internal/models"
	"github.com/insightdelivered/broker-statement-parser/internal/parser"
	"github.com/insightdelivered/broker-statement-parser/internal/storage"
	"github.com/insightdelivered/broker-statement-parser/internal/writer"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// ParseResponse is the JSON response from the /api/parse endpoint.
type ParseResponse struct {
	Success     bool                    `json:"success"`
	Error       string                  `json:"error,omitempty"`
	RequestID   string                  `json:"requestId,omitempty"`
	StatementID string                  `json:"statementId,omitempty"`
	Result      *models.StatementResult `json:"result,omitempty"`
}

// Handler holds the HTTP handlers for the API. Store is optional; without it
// statements are parsed but not archived and the archive routes are absent.
type Handler struct {
	Log   zerolog.Logger
	Store *storage.StatementRepository
}

// NewApp builds a fiber app with the API routes, panic recovery and a
// per-request id.
func NewApp(h *Handler, bodyLimit int) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(h.requestLogger)
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/parse", h.HandleParse)
	if h.Store != nil {
		app.Get("/api/statements", h.HandleListStatements)
		app.Get("/api/statements/:id/operations", h.HandleListOperations)
	}
}

// requestLogger tags each request with an id and logs its outcome.
func (h *Handler) requestLogger(c *fiber.Ctx) error {
	id := uuid.NewString()
	log := h.Log.With().Str("request_id", id).Logger()
	c.Set("X-Request-ID", id)
	c.Locals("request_id", id)
	c.SetUserContext(logger.WithContext(c.UserContext(), log))

	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	log.Info().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Msg("request handled")
	return err
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": Version,
		"archive": h.Store != nil,
	})
}

// HandleParse accepts a multipart upload in field "file" and returns the
// parsed statement. Optional form fields: broker, format (json|csv) and
// header (false drops CSV metadata rows).
func (h *Handler) HandleParse(c *fiber.Ctx) error {
	log := logger.FromContext(c.UserContext())

	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}
	ext, err := extractor.Extension(fh.Filename)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "Only .xls and .xlsx files are supported.")
	}

	var broker models.BrokerType
	if name := c.FormValue("broker"); name != "" {
		if broker, err = parser.ParseBroker(name); err != nil {
			return writeError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	out, err := writer.ForFormat(c.FormValue("format"), c.FormValue("header") != "false")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := fh.Open()
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "Failed to read uploaded file.")
	}
	defer file.Close()

	grid, err := extractor.ReadGridFrom(file, ext)
	if err != nil {
		return writeError(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("Spreadsheet decode failed: %v", err))
	}

	result, err := parser.ParseGrid(grid, broker, log)
	if err != nil {
		return writeError(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("Parsing failed: %v", err))
	}

	var statementID string
	if h.Store != nil {
		id, err := h.Store.SaveStatement(c.UserContext(), result, fh.Filename)
		if err != nil {
			log.Error().Err(err).Msg("failed to archive statement")
			return writeError(c, fiber.StatusInternalServerError, "Failed to archive statement.")
		}
		statementID = id.String()
		c.Set("X-Statement-ID", statementID)
	}

	if _, isCSV := out.(*writer.CSVWriter); isCSV {
		var buf bytes.Buffer
		if err := out.Write(&buf, result); err != nil {
			return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("CSV generation failed: %v", err))
		}
		c.Set(fiber.HeaderContentType, out.ContentType())
		return c.Send(buf.Bytes())
	}

	return c.JSON(ParseResponse{
		Success:     true,
		RequestID:   requestID(c),
		StatementID: statementID,
		Result:      result,
	})
}

func (h *Handler) HandleListStatements(c *fiber.Ctx) error {
	list, err := h.Store.ListStatements(c.UserContext())
	if err != nil {
		log := logger.FromContext(c.UserContext())
		log.Error().Err(err).Msg("failed to list statements")
		return writeError(c, fiber.StatusInternalServerError, "Failed to list statements.")
	}
	return c.JSON(fiber.Map{"success": true, "statements": list})
}

func (h *Handler) HandleListOperations(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "Invalid statement id.")
	}
	ops, err := h.Store.ListOperations(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return writeError(c, fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		log := logger.FromContext(c.UserContext())
		log.Error().Err(err).Msg("failed to list operations")
		return writeError(c, fiber.StatusInternalServerError, "Failed to list operations.")
	}
	return c.JSON(fiber.Map{"success": true, "operations": ops})
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("request_id").(string)
	return id
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ParseResponse{
		Success:   false,
		Error:     msg,
		RequestID: requestID(c),
	})
}

// errorHandler renders errors escaping the handlers, recovered panics
// included, in the same JSON shape.
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = fmt.Sprintf("Internal server error: %v", err)
	}
	return writeError(c, status, msg)
}
