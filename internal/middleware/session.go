package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionConfig for the Redis-backed session written by the auth service.
type SessionConfig struct {
	RedisURL string
}

const (
	SessionCookieName  = "budget.sid"
	SessionRedisPrefix = "session:"
	sessionMaxAge      = 24 * time.Hour
)

// SessionUser is the shape stored in the session under "user".
type SessionUser struct {
	UserID               string  `json:"user_id"`
	Fullname             string  `json:"fullname"`
	Role                 string  `json:"role"`
	OrganizationalUnitID *string `json:"organizational_unit_id"`
}

// Session returns a Fiber middleware that loads the session from Redis and slides its TTL.
// Cookie values may be "s:id" or "s:id.signature"; the id is the part before the dot.
func Session(cfg SessionConfig) (fiber.Handler, *redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)
	return SessionWithClient(rdb), rdb, nil
}

// SessionWithClient is Session over an existing client.
func SessionWithClient(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(SessionCookieName)
		if strings.HasPrefix(sessionID, "s:") {
			sessionID = strings.SplitN(sessionID[2:], ".", 2)[0]
		}
		c.Locals(userLocal, nil)
		if sessionID == "" {
			return c.Next()
		}

		ctx := context.Background()
		key := SessionRedisPrefix + sessionID
		b, err := rdb.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			log.Warn().Err(err).Msg("session lookup failed")
		default:
			var data map[string]interface{}
			if err := json.Unmarshal(b, &data); err != nil {
				log.Warn().Err(err).Msg("malformed session payload")
				break
			}
			if u, ok := data["user"].(map[string]interface{}); ok {
				c.Locals(userLocal, u)
				rdb.Expire(ctx, key, sessionMaxAge)
			}
		}
		return c.Next()
	}
}

// SaveSession writes a session payload; the auth service uses the same layout.
func SaveSession(ctx context.Context, rdb *redis.Client, sessionID string, user SessionUser) error {
	b, err := json.Marshal(map[string]interface{}{"user": user})
	if err != nil {
		return err
	}
	return rdb.Set(ctx, SessionRedisPrefix+sessionID, b, sessionMaxAge).Err()
}
