package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger covers the postgres pool and the redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealthGET reports whether the backing stores answer.
func HandleHealthGET(deps map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		out := gin.H{}
		for name, p := range deps {
			if p == nil {
				continue
			}
			if err := p.Ping(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				out[name] = "down"
				continue
			}
			out[name] = "ok"
		}
		c.JSON(status, out)
	}
}
