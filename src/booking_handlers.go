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

func bookingHandlers(g *gin.RouterGroup, m *booking.Machine) *gin.RouterGroup {
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
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
			res, err := m.CreateServiceBooking(ctx.Request.Context(), &body, studentUID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, res)
		}).
		GET("/bookings", func(ctx *gin.Context) {
			var filters types.BookingQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			bookings, err := m.Store.ListBookings(ctx.Request.Context(), &filters)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params struct {
				ID string `uri:"id" binding:"required,uuid"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, _ := uuid.Parse(params.ID)
			b, err := m.Store.GetBooking(ctx.Request.Context(), id)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": b})
		}).
		PATCH("/bookings", func(ctx *gin.Context) {
			var body types.UpdateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			claims, err := lib.VerifyIDToken(body.IDToken)
			if err != nil {
				log.Printf("token error: %s\n", err.Error())
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			id, _ := uuid.Parse(body.BookingID)
			switch body.Status {
			case string(types.BOOKING_COMPLETED):
				err = m.Complete(ctx.Request.Context(), id, claims.UID, body.CompletionNotes, body.Deliverables)
			case string(types.BOOKING_CANCELLED):
				uid := claims.UID
				err = m.Cancel(ctx.Request.Context(), id, &uid)
			}
			if err != nil {
				respondError(ctx, err)
				return
			}
			b, err := m.Store.GetBooking(ctx.Request.Context(), id)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": b})
		})
	return g
}
