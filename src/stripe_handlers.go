package main

import (
	"coachbook/src/booking"
	"coachbook/src/middlewares"
	"coachbook/src/models"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

// stripeWebhookRoute lives outside the versioned group so the endpoint
// URL registered with Stripe never changes across API versions.
func stripeWebhookRoute(g *gin.Engine, r *booking.Reconciler) {
	g.POST("/webhooks/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		endpointSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		sigHeader := ctx.Request.Header.Get("Stripe-Signature")
		event, err := webhook.ConstructEvent(payload, sigHeader, endpointSecret)
		if err != nil {
			log.Printf("Webhook signature verification failed: %s\n", err.Error())
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		if err := r.HandleEvent(ctx.Request.Context(), &event); err != nil {
			log.Printf("Error handling %s: %s\n", event.Type, err.Error())
			ctx.Status(http.StatusInternalServerError)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"received": true})
	})
}

func stripeHandlers(g *gin.RouterGroup, gdb *gorm.DB) *gin.RouterGroup {
	sg := g.Group("/stripe", middlewares.AuthMiddleware)
	sg.GET("/account", func(ctx *gin.Context) {
		uid := ctx.GetString("uid")
		var coach models.Coach
		if err := gdb.Model(&models.Coach{}).Where(&models.Coach{UID: uid}).First(&coach).Error; err != nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "coach not found"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{
			"accountId":        coach.StripeAccountID,
			"chargesEnabled":   coach.ChargesEnabled,
			"payoutsEnabled":   coach.PayoutsEnabled,
			"detailsSubmitted": coach.DetailsSubmitted,
			"requirements":     coach.Requirements,
		})
	})
	return g
}
