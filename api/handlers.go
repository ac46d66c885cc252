package api

import (
	"github.com/gofiber/fiber/v2"
)

// HealthResponse reports the models and store the server runs with.
type HealthResponse struct {
	Status         string `json:"status"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	ChatModel      string `json:"chat_model,omitempty"`
	Store          string `json:"store,omitempty"`
	Documents      int    `json:"documents"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleHealth checks the store and reports configuration.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	stats, err := s.documents.Stats(c.UserContext())
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
			Status:         "unhealthy",
			EmbeddingModel: s.config.EmbeddingModel,
			ChatModel:      s.config.ChatModel,
			Store:          s.config.StoreProvider,
		})
	}

	return c.JSON(HealthResponse{
		Status:         "ok",
		EmbeddingModel: s.config.EmbeddingModel,
		ChatModel:      s.config.ChatModel,
		Store:          s.config.StoreProvider,
		Documents:      stats.Documents,
	})
}
