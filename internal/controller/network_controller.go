package controller

import (
	"context"
	"time"

	"learnlink-be/internal/dto"
	"learnlink-be/internal/pkg/serverutils"
	"learnlink-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type INetworkController interface {
	RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler)
	Show(ctx *fiber.Ctx) error
	Refresh(ctx *fiber.Ctx) error
	SendRequest(ctx *fiber.Ctx) error
	AcceptRequest(ctx *fiber.Ctx) error
	RejectRequest(ctx *fiber.Ctx) error
	CancelRequest(ctx *fiber.Ctx) error
	RemoveConnection(ctx *fiber.Ctx) error
}

type networkController struct {
	service     service.INetworkService
	refreshWait time.Duration
}

// NewNetworkController builds the network page endpoints. refreshWait caps how
// long a refresh request blocks before answering with whatever has loaded.
func NewNetworkController(service service.INetworkService, refreshWait time.Duration) INetworkController {
	return &networkController{service: service, refreshWait: refreshWait}
}

func (c *networkController) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	h := r.Group("/network/v1")
	h.Use(jwtMiddleware)
	h.Get("", c.Show)
	h.Post("refresh", c.Refresh)
	h.Post("requests", c.SendRequest)
	h.Put("requests/:id/accept", c.AcceptRequest)
	h.Put("requests/:id/reject", c.RejectRequest)
	h.Delete("requests/:id", c.CancelRequest)
	h.Delete("connections/:id", c.RemoveConnection)
}

func (c *networkController) Show(ctx *fiber.Ctx) error {
	res := c.service.GetSnapshot(ctx.UserContext(), serverutils.UserID(ctx), serverutils.BearerToken(ctx))
	return ctx.JSON(serverutils.SuccessResponse("Success get network", res))
}

func (c *networkController) Refresh(ctx *fiber.Ctx) error {
	req, err := parseRefresh(ctx)
	if err != nil {
		return err
	}

	wait, cancel := context.WithTimeout(ctx.UserContext(), c.refreshWait)
	defer cancel()

	res, err := c.service.Refresh(wait, serverutils.UserID(ctx), serverutils.BearerToken(ctx), req.Sections)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success refresh network", res))
}

func (c *networkController) SendRequest(ctx *fiber.Ctx) error {
	var req dto.SendConnectionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendRequest(ctx.UserContext(), serverutils.UserID(ctx), serverutils.BearerToken(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Connection request sent", res))
}

func (c *networkController) AcceptRequest(ctx *fiber.Ctx) error {
	res, err := c.service.AcceptRequest(ctx.UserContext(), serverutils.UserID(ctx), serverutils.BearerToken(ctx), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Connection request accepted", res))
}

func (c *networkController) RejectRequest(ctx *fiber.Ctx) error {
	if err := c.service.RejectRequest(ctx.UserContext(), serverutils.UserID(ctx), serverutils.BearerToken(ctx), ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Connection request rejected", nil))
}

func (c *networkController) CancelRequest(ctx *fiber.Ctx) error {
	if err := c.service.CancelRequest(ctx.UserContext(), serverutils.UserID(ctx), serverutils.BearerToken(ctx), ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Connection request cancelled", nil))
}

func (c *networkController) RemoveConnection(ctx *fiber.Ctx) error {
	if err := c.service.RemoveConnection(ctx.UserContext(), serverutils.UserID(ctx), serverutils.BearerToken(ctx), ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Connection removed", nil))
}

// parseRefresh accepts an empty body as "refresh everything".
func parseRefresh(ctx *fiber.Ctx) (dto.RefreshRequest, error) {
	var req dto.RefreshRequest
	if len(ctx.Body()) == 0 {
		return req, nil
	}
	if err := ctx.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return req, serverutils.ValidateRequest(req)
}
