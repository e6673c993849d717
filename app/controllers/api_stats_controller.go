package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SubFox/internal/pkg/statistics"
)

// StatsController exposes cached operational counters for internal tooling.
type StatsController struct{}

func NewStatsController() *StatsController {
	return &StatsController{}
}

// HandleGetStats returns the cached statistics snapshot.
func (sc *StatsController) HandleGetStats(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(statistics.GetStatistics())
}
