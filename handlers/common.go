package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jkarani9/bookmed/utils"
)

var validate = validator.New()

func pageOptions(c *fiber.Ctx) utils.PageOptions {
	return utils.PageOptions{
		Page:      c.QueryInt("page"),
		Limit:     c.QueryInt("limit"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
}

// queryTime parses an optional RFC3339 query parameter, returning nil when
// absent or unparseable.
func queryTime(c *fiber.Ctx, key string) *time.Time {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}
