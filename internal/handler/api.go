package handler

import (
	"net/http"
	"strconv"

	"shelflife/internal/models"
	"shelflife/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests
type Handler struct {
	shelfLife *service.ShelfLife
	jwtSecret []byte
	logger    *zap.Logger
}

// NewHandler creates a new API handler. A non-empty jwtSecret protects /api/v1.
func NewHandler(shelfLife *service.ShelfLife, jwtSecret string, logger *zap.Logger) *Handler {
	h := &Handler{
		shelfLife: shelfLife,
		logger:    logger,
	}
	if jwtSecret != "" {
		h.jwtSecret = []byte(jwtSecret)
	}
	return h
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	if h.jwtSecret != nil {
		api.Use(AuthMiddleware(h.jwtSecret, h.logger))
	}
	{
		// Prediction endpoints
		api.POST("/predict", h.Predict)
		api.POST("/predict/batch", h.PredictBatch)
		api.POST("/explain", h.Explain)
		api.POST("/voice/explain", h.VoiceExplain)

		// Advisor endpoints
		api.POST("/chat", h.Chat)
		api.POST("/chat/prediction-explanation", h.PredictionExplanation)
		api.POST("/chat/storage-advice", h.StorageAdvice)
		api.POST("/chat/safety-guidelines", h.SafetyGuidelines)

		// History and model
		api.GET("/predictions", h.ListPredictions)
		api.GET("/predictions/stats", h.GetStats)
		api.GET("/predictions/:id", h.GetPrediction)
		api.GET("/model/info", h.ModelInfo)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

// Predict handles single item prediction
func (h *Handler) Predict(c *gin.Context) {
	var req models.PredictionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.shelfLife.Predict(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "prediction failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PredictBatch handles batch prediction
func (h *Handler) PredictBatch(c *gin.Context) {
	var req models.BatchPredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.shelfLife.PredictBatch(c.Request.Context(), req.Items)
	if err != nil {
		h.fail(c, "batch prediction failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}

// Explain returns a prediction with its text explanation
func (h *Handler) Explain(c *gin.Context) {
	var req models.PredictionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, explanation, err := h.shelfLife.Explain(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "explanation failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"explanation": explanation,
		"result":      result,
	})
}

// VoiceExplain streams the spoken explanation as MPEG audio
func (h *Handler) VoiceExplain(c *gin.Context) {
	var req models.PredictionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	audio, err := h.shelfLife.VoiceExplain(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "voice explanation failed", err)
		return
	}

	c.Data(http.StatusOK, "audio/mpeg", audio)
}

// Chat answers a free-form question
func (h *Handler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.shelfLife.Chat(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "chat failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "response": answer})
}

// PredictionExplanation predicts an item and answers the explanation questions
func (h *Handler) PredictionExplanation(c *gin.Context) {
	var req models.PredictionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, answers, err := h.shelfLife.PredictionExplanation(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "prediction explanation failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"explanation": answers,
		"result":      result,
	})
}

// StorageAdvice returns storage best practices
func (h *Handler) StorageAdvice(c *gin.Context) {
	var req models.StorageAdviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.shelfLife.StorageAdvice(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "storage advice failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "response": answer})
}

// SafetyGuidelines returns safety guidance for a food type
func (h *Handler) SafetyGuidelines(c *gin.Context) {
	var req struct {
		FoodType string `json:"food_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.shelfLife.SafetyGuidelines(c.Request.Context(), req.FoodType)
	if err != nil {
		h.fail(c, "safety guidelines failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "response": answer})
}

// ListPredictions returns recorded predictions
func (h *Handler) ListPredictions(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit (must be 1-500)"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	records, err := h.shelfLife.ListPredictions(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, "failed to get predictions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": records,
		"total":       len(records),
		"limit":       limit,
		"offset":      offset,
	})
}

// GetPrediction returns one recorded prediction
func (h *Handler) GetPrediction(c *gin.Context) {
	record, err := h.shelfLife.GetPrediction(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "prediction not found", err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetStats returns prediction statistics
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.shelfLife.PredictionStats(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to get stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ModelInfo describes the loaded model
func (h *Handler) ModelInfo(c *gin.Context) {
	info, err := h.shelfLife.ModelInfo(c.Request.Context())
	if err != nil {
		h.fail(c, "model info unavailable", err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	status := h.shelfLife.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "shelf-life-service",
		"version":         "1.0.0",
		"pipeline_loaded": status.PipelineLoaded,
		"chat_available":  status.ChatAvailable,
		"voice_available": status.VoiceAvailable,
		"history_enabled": status.HistoryEnabled,
	})
}

// fail logs err and writes msg with the status mapped from err.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := models.MapHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
	} else {
		h.logger.Debug(msg, zap.Error(err), zap.String("path", c.FullPath()))
	}
	c.JSON(status, gin.H{"error": msg, "details": err.Error()})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
