package controller

import (
	"context"
	"time"

	"learnlink-be/internal/pkg/serverutils"
	"learnlink-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDashboardController interface {
	RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler)
	Show(ctx *fiber.Ctx) error
	Refresh(ctx *fiber.Ctx) error
	MarkAnnouncementRead(ctx *fiber.Ctx) error
}

type dashboardController struct {
	service     service.IDashboardService
	refreshWait time.Duration
}

func NewDashboardController(service service.IDashboardService, refreshWait time.Duration) IDashboardController {
	return &dashboardController{service: service, refreshWait: refreshWait}
}

func (c *dashboardController) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	h := r.Group("/dashboard/v1")
	h.Use(jwtMiddleware)
	h.Get("", c.Show)
	h.Post("refresh", c.Refresh)
	h.Put("announcements/:id/read", c.MarkAnnouncementRead)
}

func (c *dashboardController) Show(ctx *fiber.Ctx) error {
	res := c.service.GetSnapshot(ctx.UserContext(), serverutils.UserID(ctx), serverutils.BearerToken(ctx))
	return ctx.JSON(serverutils.SuccessResponse("Success get dashboard", res))
}

func (c *dashboardController) Refresh(ctx *fiber.Ctx) error {
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

	return ctx.JSON(serverutils.SuccessResponse("Success refresh dashboard", res))
}

func (c *dashboardController) MarkAnnouncementRead(ctx *fiber.Ctx) error {
	if err := c.service.MarkAnnouncementRead(ctx.UserContext(), serverutils.UserID(ctx), serverutils.BearerToken(ctx), ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Announcement marked as read", nil))
}
