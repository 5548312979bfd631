// Package authgin assembles the HTTP surface of the authorization
// server on gin.
package authgin

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/soilmonitoring/phoenix-iam/adapters/gin/handlers"
	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	"github.com/soilmonitoring/phoenix-iam/core"
	"github.com/soilmonitoring/phoenix-iam/identity"
	jwtkit "github.com/soilmonitoring/phoenix-iam/jwt"
	"github.com/soilmonitoring/phoenix-iam/oauth"
)

// Deps carries everything the routes need. Pool and Redis may be nil;
// the health endpoint then simply skips them.
type Deps struct {
	Flow     *oauth.Controller
	Keys     *jwtkit.KeyManager
	Users    *identity.Service
	Tenants  identity.TenantRepository
	Audit    core.AuthEventLogger
	Limiter  ginutil.RateLimiter
	Pool     *pgxpool.Pool
	Redis    *redis.Client
}

// NewRouter wires every endpoint onto a fresh engine.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/authorize", handlers.HandleAuthorizeGET(d.Flow))
	r.GET("/login", handlers.HandleLoginGET())
	r.POST("/login/authorization", handlers.HandleLoginPOST(d.Flow, d.Audit, d.Limiter))
	r.POST("/consent", handlers.HandleConsentPOST(d.Flow))
	r.POST("/token", handlers.HandleTokenPOST(d.Flow))

	r.GET("/jwk", handlers.HandleJWKGET(d.Keys))
	r.GET("/.well-known/jwks.json", handlers.HandleJWKSGET(d.Keys))

	r.POST("/users/register", handlers.HandleUsersRegisterPOST(d.Users))
	r.POST("/users/activate", handlers.HandleUsersActivatePOST(d.Users))
	r.POST("/tenants/register", handlers.HandleTenantsRegisterPOST(d.Tenants))
	r.GET("/tenants/:name", handlers.HandleTenantGET(d.Tenants))

	pingers := map[string]handlers.Pinger{}
	if d.Pool != nil {
		pingers["postgres"] = d.Pool
	}
	if d.Redis != nil {
		pingers["redis"] = redisPinger{d.Redis}
	}
	r.GET("/healthz", handlers.HandleHealthGET(pingers))

	return r
}

type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }
