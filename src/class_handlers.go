package main

import (
	"coachbook/src/booking"
	"coachbook/src/lib"
	"coachbook/src/types"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func classHandlers(g *gin.RouterGroup, m *booking.Machine) *gin.RouterGroup {
	g.
		POST("/classes/:id/book", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.BookClassRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var studentUID *string
			if body.IDToken != nil && *body.IDToken != "" {
				claims, err := lib.VerifyIDToken(*body.IDToken)
				if err != nil {
					log.Printf("token error: %s\n", err.Error())
					ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
					return
				}
				studentUID = &claims.UID
			}
			res, err := m.BookClass(ctx.Request.Context(), params.ID, &body, studentUID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, res)
		}).
		DELETE("/classes/:id/book", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var query types.CancelClassBookingQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			// meetingId is accepted for compatibility; meeting teardown
			// happens outside this service.
			id, _ := uuid.Parse(query.BookingID)
			b, err := m.Store.GetBooking(ctx.Request.Context(), id)
			if err != nil {
				respondError(ctx, err)
				return
			}
			if b.Kind != types.KIND_CLASS || b.ClassID == nil || *b.ClassID != params.ID {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "booking not found for this class"})
				return
			}
			if err := m.Cancel(ctx.Request.Context(), id, nil); err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"cancelled": true})
		})
	return g
}
