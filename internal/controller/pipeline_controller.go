package controller

import (
	"errors"

	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/pkg/serverutils"
	"ai-digest-bot/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPipelineController interface {
	RegisterRoutes(r fiber.Router, guard fiber.Handler)
	GetAll(ctx *fiber.Ctx) error
	Run(ctx *fiber.Ctx) error
	ListRuns(ctx *fiber.Ctx) error
}

type pipelineController struct {
	digest service.IDigestService
	runs   service.IRunService
}

func NewPipelineController(digest service.IDigestService, runs service.IRunService) IPipelineController {
	return &pipelineController{digest: digest, runs: runs}
}

func (c *pipelineController) RegisterRoutes(r fiber.Router, guard fiber.Handler) {
	h := r.Group("/pipelines/v1")
	h.Use(guard)
	h.Get("", c.GetAll)
	h.Get("runs", c.ListRuns)
	h.Post(":name/run", c.Run)
}

func (c *pipelineController) GetAll(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get all pipelines", c.digest.Pipelines()))
}

// Run triggers a pipeline synchronously. A failed run still returns the
// run record alongside the error status.
func (c *pipelineController) Run(ctx *fiber.Ctx) error {
	var req dto.RunPipelineRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	res, err := c.digest.Run(ctx.UserContext(), ctx.Params("name"), dto.TriggerManual, req)
	if errors.Is(err, service.ErrPipelineNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		code := serverutils.StatusFor(err)
		body := serverutils.ErrorResponse(code, err.Error())
		body.Data = res
		return ctx.Status(code).JSON(body)
	}

	return ctx.JSON(serverutils.SuccessResponse("Pipeline run finished", res))
}

func (c *pipelineController) ListRuns(ctx *fiber.Ctx) error {
	var req dto.ListRunsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.runs.List(ctx.UserContext(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get runs", res))
}
