package main

import (
	"bookpay/src/webhooks"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody matches the processor's own upper bound for event payloads.
const maxWebhookBody = 65536

func stripeWebhookRoute(g *gin.Engine, proc *webhooks.Processor) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/webhook/stripe", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok", "service": "stripe-webhook"})
		}).
		POST("/webhook/stripe", func(ctx *gin.Context) {
			payload, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxWebhookBody))
			if err != nil {
				log.Printf("Error reading request body: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
				return
			}
			event, err := proc.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"))
			if err != nil {
				if errors.Is(err, webhooks.ErrEmptyPayload) {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing body"})
					return
				}
				log.Printf("Error verifying webhook signature: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
				return
			}
			log.Printf("[StripeEvent] %s %s\n", event.Type, event.ID)
			if err := proc.Handle(ctx.Request.Context(), &event); err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "webhook handler failed"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"received": true})
		})
	return apiv1
}
