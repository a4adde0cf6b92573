package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"taskhub/internal/middleware"
	"taskhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already wrote the error response. Handlers
// return nil on it so the Fiber error handler leaves the body alone.
var errResponseWritten = errors.New("response already written")

// Pagination is a parsed limit/offset pair.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPaginationLimit = 20
	maxPaginationLimit     = 100
)

// parsePagination reads ?limit and ?offset. Missing, non-numeric or
// non-positive limits use def; larger ones are capped at maxPaginationLimit.
func parsePagination(c *fiber.Ctx, def int) Pagination {
	p := Pagination{Limit: c.QueryInt("limit", def), Offset: c.QueryInt("offset", 0)}
	switch {
	case p.Limit <= 0:
		p.Limit = def
	case p.Limit > maxPaginationLimit:
		p.Limit = maxPaginationLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// parseID reads a positive integer route param. Anything else is answered
// with 400 "Invalid <label>" and errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err == nil && id > 0 {
		return uint(id), nil
	}
	_ = models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError("Invalid "+humanizeParam(param)))
	return 0, errResponseWritten
}

// humanizeParam labels a snake_case route param: "id" is "ID", "post_id" is
// "post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if base, ok := strings.CutSuffix(param, "_id"); ok {
		return strings.ReplaceAll(base, "_", " ") + " ID"
	}
	return param
}

// bindBody decodes the JSON body into dst. Fields may sit at the top level or
// under a resource key ({"project": {...}}); the wrapped object wins. An empty
// body leaves dst untouched.
func bindBody(c *fiber.Ctx, wrapper string, dst interface{}) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return nil
	}

	var envelope map[string]json.RawMessage
	err := json.Unmarshal(body, &envelope)
	if err == nil && wrapper != "" {
		if inner := bytes.TrimSpace(envelope[wrapper]); len(inner) > 0 && inner[0] == '{' {
			body = inner
		}
	}
	if err == nil {
		err = json.Unmarshal(body, dst)
	}
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

var statusByCode = map[string]int{
	models.CodeValidation:   fiber.StatusUnprocessableEntity,
	models.CodeUnauthorized: fiber.StatusUnauthorized,
	models.CodeForbidden:    fiber.StatusForbidden,
	models.CodeNotFound:     fiber.StatusNotFound,
}

// statusForError maps an AppError code to its HTTP status; unknown codes are 500.
func statusForError(err error) int {
	if status, ok := statusByCode[models.ErrorCode(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// mapServiceError writes err with its status. Anything that ends up a 500 is
// logged, and non-AppErrors are masked as internal errors.
func mapServiceError(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status != fiber.StatusInternalServerError {
		return models.RespondWithError(c, status, err)
	}

	middleware.Logger.ErrorContext(c.UserContext(), "request failed",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		err = models.NewInternalError(err)
	}
	return models.RespondWithError(c, status, err)
}

// currentUserID is the authenticated caller; zero on public routes.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := middleware.CurrentUserID(c)
	return id
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}
