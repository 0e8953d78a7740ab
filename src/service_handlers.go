package main

import (
	"coachbook/src/booking"
	"coachbook/src/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

func serviceHandlers(g *gin.RouterGroup, l booking.Ledger) *gin.RouterGroup {
	g.
		GET("/services/:id/availability", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			avail, err := l.CheckAvailability(ctx.Request.Context(), types.KIND_SERVICE, params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"id": params.ID, "available": avail.Available, "remaining": avail.Remaining})
		}).
		GET("/classes/:id/availability", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			avail, err := l.CheckAvailability(ctx.Request.Context(), types.KIND_CLASS, params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"id": params.ID, "available": avail.Available, "remaining": avail.Remaining})
		})
	return g
}
