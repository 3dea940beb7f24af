package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence"
	"github.com/vergohq/vergo/pkg/services"
)

// APIHandlers wires the versioning services to HTTP routes.
type APIHandlers struct {
	versionService *services.Versions
	branchService  *services.Branches
	controlService *services.Control
	validator      *validator.Validate
	persistence    persistence.Persistence
}

func NewAPIHandlers(
	versionService *services.Versions,
	branchService *services.Branches,
	controlService *services.Control,
	validator *validator.Validate,
	p persistence.Persistence,
) *APIHandlers {
	return &APIHandlers{
		versionService: versionService,
		branchService:  branchService,
		controlService: controlService,
		validator:      validator,
		persistence:    p,
	}
}

func (h *APIHandlers) InitWorkflow(c fiber.Ctx) error {
	workflowID := c.Params("workflowId")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req InitWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	spec, err := decodeSpec(req.Spec)
	if err != nil {
		return badRequest(c, err.Error())
	}

	branch, version, err := h.branchService.InitWorkflow(c.Context(), workflowID, spec, req.ChangeSummary)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"branch":  branch,
		"version": version,
	})
}

func (h *APIHandlers) ListBranches(c fiber.Ctx) error {
	branches, err := h.branchService.ListBranches(c.Context(), c.Params("workflowId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"branches": branches})
}

func (h *APIHandlers) CreateBranch(c fiber.Ctx) error {
	workflowID := c.Params("workflowId")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req CreateBranchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	branch, err := h.branchService.CreateBranch(c.Context(), services.CreateBranchParams{
		WorkflowID:    workflowID,
		Name:          req.Name,
		Description:   req.Description,
		IsProtected:   req.IsProtected,
		BaseVersionID: req.BaseVersionID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(branch)
}

func (h *APIHandlers) GetBranch(c fiber.Ctx) error {
	branch, err := h.branchService.GetBranch(c.Context(), c.Params("id"))
	if err != nil {
		if persistence.IsBranchNotFound(err) {
			return notFound(c, "Branch not found")
		}

		return internalError(c, err)
	}

	return c.JSON(branch)
}

func (h *APIHandlers) GetDefaultBranch(c fiber.Ctx) error {
	branch, err := h.branchService.GetDefaultBranch(c.Context(), c.Params("workflowId"))
	if err != nil {
		if persistence.IsBranchNotFound(err) {
			return notFound(c, "Default branch not found")
		}

		return internalError(c, err)
	}

	return c.JSON(branch)
}

func (h *APIHandlers) ArchiveBranch(c fiber.Ctx) error {
	branch, err := h.branchService.ArchiveBranch(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(branch)
}

func (h *APIHandlers) AdvanceHead(c fiber.Ctx) error {
	var req AdvanceHeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	branch, err := h.branchService.AdvanceHead(c.Context(), c.Params("id"), req.VersionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(branch)
}

func (h *APIHandlers) ListVersions(c fiber.Ctx) error {
	opts, err := h.parseListVersionsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.versionService.ListVersions(c.Context(), c.Params("workflowId"), *opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"versions":      result.Versions,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	})
}

func (h *APIHandlers) parseListVersionsOptions(c fiber.Ctx) (*persistence.ListVersionsOptions, error) {
	opts := &persistence.ListVersionsOptions{BranchID: c.Query("branch_id")}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	return opts, nil
}

func (h *APIHandlers) CreateVersion(c fiber.Ctx) error {
	workflowID := c.Params("workflowId")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req CreateVersionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	spec, err := decodeSpec(req.Spec)
	if err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.versionService.CreateVersion(c.Context(), services.CreateVersionParams{
		WorkflowID:      workflowID,
		BranchID:        req.BranchID,
		Spec:            spec,
		ChangeSummary:   req.ChangeSummary,
		ChangeType:      models.ChangeType(req.ChangeType),
		ParentVersionID: req.ParentVersionID,
		IsRelease:       req.IsRelease,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(version)
}

func (h *APIHandlers) GetVersion(c fiber.Ctx) error {
	version, err := h.versionService.GetVersion(c.Context(), c.Params("id"))
	if err != nil {
		if persistence.IsVersionNotFound(err) {
			return notFound(c, "Version not found")
		}

		return internalError(c, err)
	}

	return c.JSON(version)
}

func (h *APIHandlers) TagVersion(c fiber.Ctx) error {
	var req TagVersionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.versionService.TagVersion(c.Context(), c.Params("id"), req.Tag)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(version)
}

func (h *APIHandlers) DiffVersions(c fiber.Ctx) error {
	delta, err := h.controlService.DiffVersions(c.Context(), c.Params("id"), c.Params("otherId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(delta)
}

func (h *APIHandlers) Rollback(c fiber.Ctx) error {
	var req RollbackRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.controlService.Rollback(c.Context(), c.Params("workflowId"), c.Params("branchId"), req.TargetVersionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(version)
}

func (h *APIHandlers) Merge(c fiber.Ctx) error {
	var req MergeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.controlService.Merge(c.Context(), c.Params("id"), req.TargetBranchID, req.Strategy)
	if err != nil {
		return handleServiceError(c, err)
	}

	status := fiber.StatusOK
	if result.Status == models.MergeStatusConflicts {
		status = fiber.StatusConflict
	}

	return c.Status(status).JSON(result)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	message := "Vergo API is healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		message = "Vergo API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
