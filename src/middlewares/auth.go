package middlewares

import (
	"bookpay/src/types"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// AuthMiddleware accepts HS256 bearer tokens signed with secret whose subject
// is the caller's id. It sets "uid" and "email" on the context.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		bearerToken := ctx.Request.Header.Get("Authorization")
		reqToken, ok := strings.CutPrefix(bearerToken, "Bearer ")
		if !ok || strings.TrimSpace(reqToken) == "" {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims := &types.Claims{}
		tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil {
			log.Printf("token error: %s\n", err.Error())
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if !tkn.Valid {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		uid, err := uuid.Parse(claims.Subject)
		if err != nil {
			log.Println("error parsing claims:", err.Error())
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		ctx.Set("uid", uid.String())
		ctx.Set("email", claims.Email)
		ctx.Set("role", claims.Role)
		ctx.Next()
	}
}

// CallerID returns the id AuthMiddleware stored on the context.
func CallerID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.GetString("uid"))
	return id, err == nil
}
