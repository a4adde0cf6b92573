package server

import (
	"encoding/json"
	"strconv"
	"strings"

	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// linkHandlers serves the CRUD routes of one join table. Field and filter
// names come from the table's two foreign keys, e.g. project_id and task_id.
type linkHandlers struct {
	svc service.LinkService
}

func (h linkHandlers) List(c *fiber.Ctx) error {
	left, right := h.svc.Sides()
	var filters []repository.LinkFilter
	for _, side := range []models.LinkSide{left, right} {
		raw := c.Query(side.Column)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid "+humanizeParam(side.Column)))
		}
		filters = append(filters, repository.LinkFilter{Column: side.Column, Value: uint(id)})
	}

	page := parsePagination(c, defaultPaginationLimit)
	rows, err := h.svc.List(c.UserContext(), filters, page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	if rows == nil {
		rows = []models.Link{}
	}
	return c.JSON(rows)
}

func (h linkHandlers) Get(c *fiber.Ctx) error {
	id, ok := linkID(c)
	if !ok {
		return nil
	}
	row, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(row)
}

func (h linkHandlers) Create(c *fiber.Ctx) error {
	in, ok := h.bind(c)
	if !ok {
		return nil
	}
	row, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(row)
}

func (h linkHandlers) Update(c *fiber.Ctx) error {
	id, ok := linkID(c)
	if !ok {
		return nil
	}
	in, ok := h.bind(c)
	if !ok {
		return nil
	}
	row, err := h.svc.Update(c.UserContext(), id, in)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(row)
}

func (h linkHandlers) Delete(c *fiber.Ctx) error {
	id, ok := linkID(c)
	if !ok {
		return nil
	}
	if err := h.svc.Delete(c.UserContext(), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// bind reads the two foreign keys from the body. Ids may be JSON numbers or
// numeric strings; a missing key leaves that side nil.
func (h linkHandlers) bind(c *fiber.Ctx) (service.LinkInput, bool) {
	var fields map[string]json.RawMessage
	if err := bindBody(c, h.svc.Resource(), &fields); err != nil {
		return service.LinkInput{}, false
	}

	left, right := h.svc.Sides()
	var in service.LinkInput
	for _, side := range []struct {
		col string
		dst **uint
	}{{left.Column, &in.LeftID}, {right.Column, &in.RightID}} {
		raw, ok := fields[side.col]
		if !ok {
			continue
		}
		id, err := decodeID(raw)
		if err != nil {
			_ = models.RespondWithError(c, fiber.StatusUnprocessableEntity,
				models.NewValidationError("Invalid "+humanizeParam(side.col)))
			return service.LinkInput{}, false
		}
		*side.dst = &id
	}
	return in, true
}

func linkID(c *fiber.Ctx) (uint, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid ID"))
		return 0, false
	}
	return uint(id), true
}

func decodeID(raw json.RawMessage) (uint, error) {
	var n uint
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	return uint(v), err
}
