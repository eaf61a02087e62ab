package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// DocumentCounter reports how many documents the search engine holds.
// *search.Client satisfies it.
type DocumentCounter interface {
	Stats(ctx context.Context) (int64, error)
}

// Stats answers the search page's indexing check with {"result": <documents>}.
func Stats(counter DocumentCounter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := counter.Stats(c.UserContext())
		if err != nil {
			log.Error().Err(err).Msg("search stats failed")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"result": n})
	}
}
