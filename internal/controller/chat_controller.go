package controller

import (
	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/pkg/serverutils"
	"ai-digest-bot/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, guard fiber.Handler)
	SendMessage(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	ResetHistory(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router, guard fiber.Handler) {
	h := r.Group("/chat/v1")
	h.Use(guard)
	h.Post("messages", c.SendMessage)
	h.Get("channels/:channel/history", c.GetHistory)
	h.Delete("channels/:channel/history", c.ResetHistory)
}

// SendMessage runs the conversational pipeline and answers in the
// response body instead of through the gateway.
func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.InboundMessage
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res := c.service.HandleMessage(ctx.UserContext(), req)
	return ctx.JSON(serverutils.SuccessResponse("Message handled", res))
}

func (c *chatController) GetHistory(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get history", c.service.History(ctx.Params("channel"))))
}

func (c *chatController) ResetHistory(ctx *fiber.Ctx) error {
	c.service.Reset(ctx.Params("channel"))
	return ctx.JSON(serverutils.SuccessResponse("History cleared", nil))
}
