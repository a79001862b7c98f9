package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/repository"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/metrics/counter"
)

// StatsController exposes operator-facing usage counters.
type StatsController struct {
	profiles func() repository.ProfileRepository
	snapshot func() (map[string]int64, error)
}

func NewStatsController() *StatsController {
	return &StatsController{
		profiles: func() repository.ProfileRepository {
			factory := repository.GetGlobalFactory()
			if factory == nil {
				return nil
			}
			return factory.GetProfileRepository()
		},
		snapshot: counter.Snapshot,
	}
}

// HandleGetStats reports profile counts and transcription outcome counters.
func (sc *StatsController) HandleGetStats(c *fiber.Ctx) error {
	response := fiber.Map{}

	if repo := sc.profiles(); repo != nil {
		if count, err := repo.Count(); err == nil {
			response["profiles"] = count
		} else {
			log.Errorf("[Stats] failed to count profiles: %v", err)
		}
	}

	outcomes, err := sc.snapshot()
	if err != nil {
		log.Warnf("[Stats] outcome counters unavailable: %v", err)
		outcomes = map[string]int64{}
	}
	response["transcriptions"] = outcomes

	return c.JSON(response)
}
