package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-reservation/internal/auth"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/reservations")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("", h.Create)
		group.POST("/recurring", h.CreateRecurring)
		group.POST("/:id/cancel", h.Cancel)
		group.POST("/:id/release", h.Release)
	}

	// === Staff Routes ===
	staff := group.Group("", auth.RequireStaff())
	{
		staff.POST("/:id/confirm", h.Confirm())
		staff.POST("/:id/complete", h.Complete())
		staff.POST("/:id/no-show", h.MarkNoShow())
	}

	// Court-scoped reads share the :id wildcard with the resource routes.
	courts := g.Group("/resources/:id", authMiddleware)
	{
		courts.GET("/reservations", h.ListForResource)
		courts.GET("/slots", h.Slots)
		courts.POST("/conflicts", h.CheckConflicts)
	}
}
