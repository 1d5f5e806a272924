package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit ограничение тела запроса (10kb).
const DefaultBodyLimit = 10 * 1024

// CORS разрешает запросы с перечисленных origin; "*" разрешает любые.
func CORS(allowed []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        10 * time.Minute,
	}
	if containsWildcard(allowed) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = trimOrigins(allowed)
	}
	return cors.New(cfg)
}

// SecurityHeaders выставляет стандартные защитные заголовки.
func SecurityHeaders() gin.HandlerFunc {
	return secure.New(secure.Config{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		IENoOpen:              true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	})
}

// OriginAllowed проверяет origin websocket-рукопожатия по тому же списку, что и CORS.
func OriginAllowed(allowed []string, origin string) bool {
	for _, a := range trimOrigins(allowed) {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func containsWildcard(allowed []string) bool {
	for _, a := range trimOrigins(allowed) {
		if a == "*" {
			return true
		}
	}
	return false
}

func trimOrigins(allowed []string) []string {
	out := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// BodyLimit обрезает тело запроса до limit байт; чтение сверх лимита
// завершается ошибкой, и обработчик отвечает 400.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
