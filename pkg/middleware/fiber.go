package middleware

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/vantagesec/gatewarden/pkg/pipeline"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

// requestIDLocal is the fiber locals key under which the evaluated request
// id is stored for downstream handlers.
const requestIDLocal = "gatewarden_request_id"

// Fiber returns a fiber handler running the pipeline before the route
// handlers.
func Fiber(p *pipeline.Pipeline) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := fromFiberCtx(c)

		secCtx, err := p.Evaluate(c.UserContext(), req)
		if err != nil {
			if rl, ok := err.(*secerrors.RateLimitExceeded); ok {
				c.Set("Retry-After", strconv.FormatInt(rl.RetryAfter, 10))
			}
			details := secerrors.ShouldExposeDetails(secCtx.ThreatScore, secCtx.IsAuthenticated())
			resp := secerrors.NewSafeResponse(err, secCtx.RequestID, details)
			return c.Status(secerrors.StatusCode(err)).JSON(resp)
		}

		for name, value := range p.ResponseHeaders(req) {
			c.Set(name, value)
		}
		c.Set("X-Request-ID", secCtx.RequestID)
		c.Locals(requestIDLocal, secCtx.RequestID)
		return c.Next()
	}
}

// RequestID retrieves the id assigned by the pipeline for the current fiber
// request, if any.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDLocal).(string); ok {
		return id
	}
	return ""
}

func fromFiberCtx(c *fiber.Ctx) *types.RequestContext {
	headers := make(map[string][]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		name := string(key)
		headers[name] = append(headers[name], string(value))
	})

	query := make(url.Values)
	c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
		query.Add(string(key), string(value))
	})

	return &types.RequestContext{
		Method:   c.Method(),
		Path:     c.Path(),
		Query:    query,
		Headers:  headers,
		Body:     c.Body(),
		Scheme:   c.Protocol(),
		Proto:    string(c.Request().Header.Protocol()),
		ClientIP: c.IP(),
	}
}
