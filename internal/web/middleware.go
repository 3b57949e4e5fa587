package web

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	mysqlstorage "github.com/gofiber/storage/mysql/v2"
	postgresstorage "github.com/gofiber/storage/postgres/v3"

	"github.com/agromano/identity-gate/internal/auth"
	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/db/dsn"
	"github.com/agromano/identity-gate/internal/web/handler"
)

const limiterGCInterval = 10 * time.Second

// cleanPath collapses duplicate slashes and dot segments before routing.
func cleanPath(c *fiber.Ctx) error {
	p := c.Path()
	if strings.Contains(p, "//") || strings.Contains(p, "/.") {
		cleaned := path.Clean(p)
		if strings.HasSuffix(p, "/") && cleaned != "/" {
			cleaned += "/"
		}

		c.Path(cleaned)
	}

	return c.Next()
}

// newLimiter builds the rate limiter of the administrative endpoints. With a
// networked database the counters live in a shared table so every instance
// enforces the same budget; sqlite keeps them in memory.
func newLimiter(cfg *config.Config) (fiber.Handler, fiber.Storage, error) {
	rl := cfg.Webserver.RateLimit

	var storage fiber.Storage

	switch cfg.DB.GormEngine {
	case config.EngineMySQL:
		storage = mysqlstorage.New(mysqlstorage.Config{
			ConnectionURI: dsn.MySQL(cfg.DB),
			Table:         rl.Table,
			GCInterval:    limiterGCInterval,
		})
	case config.EnginePostgres:
		storage = postgresstorage.New(postgresstorage.Config{
			ConnectionURI: dsn.Postgres(cfg.DB),
			Table:         rl.Table,
			GCInterval:    limiterGCInterval,
		})
	case config.EngineSQLite:
	default:
		return nil, nil, config.ErrUnknownGormEngine
	}

	return limiter.New(limiter.Config{
		Max:               rl.Max,
		Expiration:        rl.Window,
		KeyGenerator:      limiterKey,
		LimitReached:      limitReached,
		Storage:           storage,
		LimiterMiddleware: limiter.SlidingWindow{},
	}), storage, nil
}

// limiterKey counts per account when authenticated, per client address otherwise.
func limiterKey(c *fiber.Ctx) string {
	if id := auth.FromCtx(c).ActorID(); id != nil {
		return "account:" + strconv.FormatUint(*id, 10)
	}

	return "ip:" + c.IP()
}

func limitReached(c *fiber.Ctx) error {
	return handler.Fail(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests")
}
