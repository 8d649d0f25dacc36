package main

import (
	"bookpay/src/checkout"
	"bookpay/src/types"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

func transactionHandlers(g *gin.RouterGroup, svc *checkout.Service) *gin.RouterGroup {
	g.
		GET("/checkout/sessions/:id", func(ctx *gin.Context) {
			var params types.SessionURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				badRequest(ctx, err)
				return
			}
			url, err := svc.CheckoutURL(ctx.Request.Context(), params.ID)
			if err != nil {
				log.Printf("[Checkout] session=%s error=%s\n", params.ID, err.Error())
				ctx.JSON(statusFor(err), types.Fail(err))
				return
			}
			ctx.JSON(http.StatusOK, types.Result{Success: true, URL: url, SessionID: params.ID})
		})
	return g
}
