package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"propfinder/server/config"
	"propfinder/server/internal/estimator"
	"propfinder/server/internal/format"
	"propfinder/server/internal/geometry"
	"propfinder/server/internal/logging"
	"propfinder/server/internal/models"
	"propfinder/server/internal/presentation"
	"propfinder/server/internal/search"
)

// AuditSink receives prediction audit batches. queue.PredictionQueue
// implements it.
type AuditSink interface {
	Push(logs []*models.PredictionLog) error
}

// PredictionHistory reads back the audit log.
type PredictionHistory interface {
	GetRecentPredictions(ctx context.Context, limit int) ([]models.PredictionLog, error)
}

// Dependencies wires a Handler. Predictor serves /predict and Recommender
// serves /api/recommendations; either may be nil, which yields 503.
type Dependencies struct {
	Catalog     *search.Catalog
	Predictor   *estimator.Bundle
	Recommender *estimator.Bundle
	Projection  presentation.Projection
	Audit       AuditSink
	History     PredictionHistory
}

type Handler struct {
	catalog     *search.Catalog
	predictor   *estimator.Bundle
	recommender *estimator.Bundle
	projection  presentation.Projection
	audit       AuditSink
	history     PredictionHistory
	logger      *logrus.Logger
}

func NewHandler(deps Dependencies, logger *logrus.Logger) *Handler {
	catalog := deps.Catalog
	if catalog == nil {
		catalog = search.NewCatalog(nil)
	}
	return &Handler{
		catalog:     catalog,
		predictor:   deps.Predictor,
		recommender: deps.Recommender,
		projection:  deps.Projection,
		audit:       deps.Audit,
		history:     deps.History,
		logger:      logging.OrDefault(logger),
	}
}

// PredictResponse is the body of a successful /predict call.
type PredictResponse struct {
	PredictedPrice float64 `json:"predicted_price"`
	FormattedPrice string  `json:"formatted_price"`
	RunID          string  `json:"run_id"`
	Kind           string  `json:"kind"`
}

func (h *Handler) Predict(c *gin.Context) {
	if h.predictor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No price model is loaded"})
		return
	}

	var input models.PredictionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.WithError(err).Warn("Invalid prediction request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	price, err := h.predictor.Predict(input)
	h.recordPrediction(h.predictor, input, price, err)
	if err != nil {
		if errors.Is(err, estimator.ErrPrediction) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to predict price")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to predict price"})
		return
	}

	c.JSON(http.StatusOK, PredictResponse{
		PredictedPrice: price,
		FormattedPrice: format.Price(price),
		RunID:          h.predictor.RunID,
		Kind:           string(h.predictor.Kind),
	})
}

// recordPrediction pushes an audit entry. A full or closed queue loses the
// entry but never fails the request.
func (h *Handler) recordPrediction(bundle *estimator.Bundle, input models.PredictionInput, price float64, predictErr error) {
	if h.audit == nil {
		return
	}

	entry := &models.PredictionLog{
		ID:           uuid.NewString(),
		RunID:        bundle.RunID,
		Kind:         string(bundle.Kind),
		City:         input.City,
		PropertyType: input.PropertyType,
		Size:         input.Size,
		Bedrooms:     input.Bedrooms,
		CreatedAt:    time.Now().UTC(),
	}
	if predictErr != nil {
		entry.Error = predictErr.Error()
	} else {
		entry.PredictedPrice = price
	}

	if err := h.audit.Push([]*models.PredictionLog{entry}); err != nil {
		h.logger.WithError(err).Warn("Dropped prediction audit entry")
	}
}

// SearchResponse lists the cards matching a query.
type SearchResponse struct {
	Count      int                 `json:"count"`
	Properties []presentation.Card `json:"properties"`
}

func (h *Handler) GetProperties(c *gin.Context) {
	cards, ok := h.searchCards(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Count: len(cards), Properties: cards})
}

func (h *Handler) GetPropertiesGeoJSON(c *gin.Context) {
	cards, ok := h.searchCards(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, geometry.FeatureCollection(cards))
}

func (h *Handler) searchCards(c *gin.Context) ([]presentation.Card, bool) {
	q, err := queryFromRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	records, err := h.catalog.Search(q)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return presentation.NewCards(records, h.projection), true
}

// GetLocalityHulls outlines the localities of one city.
func (h *Handler) GetLocalityHulls(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city is required"})
		return
	}
	c.JSON(http.StatusOK, geometry.LocalityHulls(h.catalog.Records(), city))
}

// RecommendationResponse is the KNN estimate and the listings priced near it.
type RecommendationResponse struct {
	EstimatedPrice float64             `json:"estimated_price"`
	FormattedPrice string              `json:"formatted_price"`
	RunID          string              `json:"run_id"`
	Count          int                 `json:"count"`
	Properties     []presentation.Card `json:"properties"`
}

func (h *Handler) GetRecommendations(c *gin.Context) {
	if h.recommender == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No recommendation model is loaded"})
		return
	}

	input, err := predictionFromRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	estimate, err := h.recommender.Predict(input)
	h.recordPrediction(h.recommender, input, estimate, err)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	q, err := search.RecommendationQuery(input.City, input.PropertyType, int(*input.Bedrooms), estimate)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	records, err := h.catalog.Search(q)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cards := presentation.NewCards(records, h.projection)
	c.JSON(http.StatusOK, RecommendationResponse{
		EstimatedPrice: estimate,
		FormattedPrice: format.Price(estimate),
		RunID:          h.recommender.RunID,
		Count:          len(cards),
		Properties:     cards,
	})
}

func (h *Handler) GetOptions(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Options())
}

func (h *Handler) GetPropertyStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Stats(c.Query("city")))
}

func (h *Handler) GetCities(c *gin.Context) {
	c.JSON(http.StatusOK, config.GetCities(h.catalog))
}

func (h *Handler) GetCity(c *gin.Context) {
	city, err := config.GetCityConfig(h.catalog, c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, city)
}

// ModelInfo describes a loaded bundle.
type ModelInfo struct {
	RunID     string            `json:"run_id"`
	Kind      string            `json:"kind"`
	Metrics   estimator.Metrics `json:"metrics"`
	TrainedAt time.Time         `json:"trained_at"`
}

func (h *Handler) GetModels(c *gin.Context) {
	infos := make(map[string]ModelInfo)
	for _, b := range []*estimator.Bundle{h.predictor, h.recommender} {
		if b == nil {
			continue
		}
		infos[string(b.Kind)] = ModelInfo{RunID: b.RunID, Kind: string(b.Kind), Metrics: b.Metrics, TrainedAt: b.TrainedAt}
	}
	c.JSON(http.StatusOK, infos)
}

func (h *Handler) GetRecentPredictions(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Prediction history is not available"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 20
	}

	logs, err := h.history.GetRecentPredictions(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recent predictions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recent predictions"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"properties": h.catalog.Len(),
		"model":      h.predictor != nil,
	})
}
