package handlers

import (
	"errors"
	"log"

	"internmatch/internal/middleware"
	"internmatch/internal/services"

	"github.com/gofiber/fiber/v2"
)

// RecommendationHandler proxies recommendation requests to the external
// matching engine.
type RecommendationHandler struct {
	recommendationService *services.RecommendationService
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(recommendationService *services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		recommendationService: recommendationService,
	}
}

// RegisterRoutes registers the recommendation routes.
func (h *RecommendationHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Get("/recommendations", auth, h.HandleGetRecommendations)
}

// HandleGetRecommendations relays the engine's response verbatim.
func (h *RecommendationHandler) HandleGetRecommendations(c *fiber.Ctx) error {
	topN := c.QueryInt("top_n", 5)

	body, err := h.recommendationService.GetRecommendations(c.Context(), middleware.UserID(c), topN)
	if err != nil {
		log.Printf("Recommendation proxy failed: %v", err)
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Recommendation service unavailable",
			"error":   err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
