package server

import (
	"strings"

	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

func listOptions(c *fiber.Ctx) repository.ListOptions {
	page := parsePagination(c, defaultPaginationLimit)
	return repository.ListOptions{
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
}

type projectRequest struct {
	Name       *string      `json:"name"`
	Time       *int         `json:"time"`
	Budget     *int         `json:"budget"`
	Spent      *int         `json:"spent"`
	StartingAt *models.Date `json:"starting_at"`
	EndingAt   *models.Date `json:"ending_at"`
	Status     *string      `json:"status"`
	Deadline   *string      `json:"deadline"`
	Public     *bool        `json:"public"`
}

func (r projectRequest) input() service.ProjectInput {
	return service.ProjectInput{
		Name:       r.Name,
		Time:       r.Time,
		Budget:     r.Budget,
		Spent:      r.Spent,
		StartingAt: r.StartingAt,
		EndingAt:   r.EndingAt,
		Status:     r.Status,
		Deadline:   r.Deadline,
		Public:     r.Public,
	}
}

// ListProjects handles GET /api/projects
// @Summary List projects
// @Description Public projects plus the caller's own, newest first
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param q query string false "Name filter"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Project
// @Router /projects [get]
func (s *Server) ListProjects(c *fiber.Ctx) error {
	projects, err := s.projectService.List(c.UserContext(), currentUserID(c), listOptions(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(projectList(projects))
}

// GetProject handles GET /api/projects/:id
func (s *Server) GetProject(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	project, err := s.projectService.Get(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(serializeProjectDetail(project))
}

// CreateProject handles POST /api/projects
func (s *Server) CreateProject(c *fiber.Ctx) error {
	var req projectRequest
	if err := bindBody(c, "project", &req); err != nil {
		return nil
	}
	project, err := s.projectService.Create(c.UserContext(), currentUserID(c), req.input())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// UpdateProject handles PUT/PATCH /api/projects/:id
func (s *Server) UpdateProject(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req projectRequest
	if err := bindBody(c, "project", &req); err != nil {
		return nil
	}
	project, err := s.projectService.Update(c.UserContext(), currentUserID(c), id, req.input())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(project)
}

// DeleteProject handles DELETE /api/projects/:id
func (s *Server) DeleteProject(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.projectService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetProjectProgress handles GET /api/projects/:id/progress
// @Summary Project progress
// @Description Task completion, budget use and schedule for a project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} service.ProjectProgress
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /projects/{id}/progress [get]
func (s *Server) GetProjectProgress(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	progress, err := s.projectService.Progress(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(progress)
}

type taskRequest struct {
	Name       *string      `json:"name"`
	Time       *int         `json:"time"`
	Cost       *int         `json:"cost"`
	Spent      *int         `json:"spent"`
	StartingAt *models.Date `json:"starting_at"`
	EndingAt   *models.Date `json:"ending_at"`
	Status     *string      `json:"status"`
	Public     *bool        `json:"public"`
}

func (r taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Name:       r.Name,
		Time:       r.Time,
		Cost:       r.Cost,
		Spent:      r.Spent,
		StartingAt: r.StartingAt,
		EndingAt:   r.EndingAt,
		Status:     r.Status,
		Public:     r.Public,
	}
}

// ListTasks handles GET /api/tasks
func (s *Server) ListTasks(c *fiber.Ctx) error {
	tasks, err := s.taskService.List(c.UserContext(), currentUserID(c), listOptions(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(taskList(tasks))
}

// GetTask handles GET /api/tasks/:id
func (s *Server) GetTask(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	task, err := s.taskService.Get(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(serializeTaskDetail(task))
}

// CreateTask handles POST /api/tasks
func (s *Server) CreateTask(c *fiber.Ctx) error {
	var req taskRequest
	if err := bindBody(c, "task", &req); err != nil {
		return nil
	}
	task, err := s.taskService.Create(c.UserContext(), currentUserID(c), req.input())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// UpdateTask handles PUT/PATCH /api/tasks/:id
func (s *Server) UpdateTask(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req taskRequest
	if err := bindBody(c, "task", &req); err != nil {
		return nil
	}
	task, err := s.taskService.Update(c.UserContext(), currentUserID(c), id, req.input())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(task)
}

// DeleteTask handles DELETE /api/tasks/:id
func (s *Server) DeleteTask(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.taskService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type resourceRequest struct {
	Name   *string `json:"name"`
	Price  *int    `json:"price"`
	Source *string `json:"source"`
	Status *string `json:"status"`
	Public *bool   `json:"public"`
}

func (r resourceRequest) input() service.ResourceInput {
	return service.ResourceInput{
		Name:   r.Name,
		Price:  r.Price,
		Source: r.Source,
		Status: r.Status,
		Public: r.Public,
	}
}

// ListResources handles GET /api/resources
func (s *Server) ListResources(c *fiber.Ctx) error {
	resources, err := s.resourceService.List(c.UserContext(), currentUserID(c), listOptions(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(resourceList(resources))
}

// GetResource handles GET /api/resources/:id
func (s *Server) GetResource(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	resource, err := s.resourceService.Get(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(serializeResourceDetail(resource))
}

// CreateResource handles POST /api/resources
func (s *Server) CreateResource(c *fiber.Ctx) error {
	var req resourceRequest
	if err := bindBody(c, "resource", &req); err != nil {
		return nil
	}
	resource, err := s.resourceService.Create(c.UserContext(), currentUserID(c), req.input())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resource)
}

// UpdateResource handles PUT/PATCH /api/resources/:id
func (s *Server) UpdateResource(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req resourceRequest
	if err := bindBody(c, "resource", &req); err != nil {
		return nil
	}
	resource, err := s.resourceService.Update(c.UserContext(), currentUserID(c), id, req.input())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(resource)
}

// DeleteResource handles DELETE /api/resources/:id
func (s *Server) DeleteResource(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.resourceService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type tagRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Public      *bool   `json:"public"`
}

func (r tagRequest) input() service.TagInput {
	return service.TagInput{Name: r.Name, Description: r.Description, Public: r.Public}
}

// ListTags handles GET /api/tags
func (s *Server) ListTags(c *fiber.Ctx) error {
	tags, err := s.tagService.List(c.UserContext(), listOptions(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(tagList(tags))
}

// GetTag handles GET /api/tags/:id
func (s *Server) GetTag(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	tag, err := s.tagService.Get(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(tag)
}

// CreateTag handles POST /api/tags
func (s *Server) CreateTag(c *fiber.Ctx) error {
	var req tagRequest
	if err := bindBody(c, "tag", &req); err != nil {
		return nil
	}
	tag, err := s.tagService.Create(c.UserContext(), req.input())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}

// UpdateTag handles PUT/PATCH /api/tags/:id
func (s *Server) UpdateTag(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req tagRequest
	if err := bindBody(c, "tag", &req); err != nil {
		return nil
	}
	tag, err := s.tagService.Update(c.UserContext(), id, req.input())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(tag)
}

// DeleteTag handles DELETE /api/tags/:id
func (s *Server) DeleteTag(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.tagService.Delete(c.UserContext(), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
