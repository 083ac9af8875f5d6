package handlers

import (
	"strings"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/celestiaorg/geoimport/internal/types"
)

// FeatureHandler handles HTTP requests for the feature library
type FeatureHandler struct {
	*APIHandler
}

// NewFeatureHandler creates a new feature handler instance
func NewFeatureHandler(api *APIHandler) *FeatureHandler {
	return &FeatureHandler{
		APIHandler: api,
	}
}

// GetFeatures returns the user's features in a map viewport.
//
// Query parameters: bbox=minLon,minLat,maxLon,maxLat (required), zoom,
// tags (comma separated, any match), collection_id and limit (-1 for no cap).
func (h *FeatureHandler) GetFeatures(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	q, err := parseBBoxQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	result, err := h.imports.QueryBBox(c.Context(), owner, q)
	if err != nil {
		return respondError(c, err, ErrMsgQueryFailed, ErrMsgQueryFailed)
	}

	fc := geojson.NewFeatureCollection()
	for i := range result.Features {
		f, err := result.Features[i].ToGeoJSON()
		if err != nil {
			return respondError(c, err, ErrMsgQueryFailed, ErrMsgQueryFailed)
		}
		fc.Append(f)
	}

	return c.JSON(types.Success(types.BBoxResponse{
		Features:     fc,
		Total:        result.Total,
		FallbackUsed: result.FallbackUsed,
		Mode:         string(result.Mode),
	}))
}

// DeleteFeatures queues the deletion of library features
func (h *FeatureHandler) DeleteFeatures(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	var req types.DeleteFeaturesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidReqBody))
	}

	resp, err := h.imports.StartBulkDelete(owner, req)
	if err != nil {
		return respondError(c, err, ErrMsgQueryFailed, ErrMsgDeleteFailed)
	}
	return c.Status(fiber.StatusAccepted).JSON(types.Success(resp))
}

// CreateCollection stores a named group of features, used by the
// collection_id filter of GetFeatures
func (h *FeatureHandler) CreateCollection(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	var req types.CreateCollectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidReqBody))
	}

	collection, err := h.imports.CreateCollection(c.Context(), owner, req)
	if err != nil {
		return respondError(c, err, ErrMsgCreateCollectionFailed, ErrMsgCreateCollectionFailed)
	}
	return c.Status(fiber.StatusCreated).JSON(types.Success(collection))
}

func parseBBoxQuery(c *fiber.Ctx) (types.BBoxQuery, error) {
	raw := c.Query("bbox")
	if raw == "" {
		return types.BBoxQuery{}, types.NewValidationError("bbox", ErrMsgBBoxRequired)
	}
	minLon, minLat, maxLon, maxLat, err := types.ParseBBox(raw)
	if err != nil {
		return types.BBoxQuery{}, err
	}

	q := types.BBoxQuery{
		MinLon: minLon,
		MinLat: minLat,
		MaxLon: maxLon,
		MaxLat: maxLat,
		Zoom:   c.QueryInt("zoom", 0),
		Limit:  c.QueryInt("limit", 0),
	}
	if tags := c.Query("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.Tags = append(q.Tags, t)
			}
		}
	}
	if raw := c.Query("collection_id"); raw != "" {
		q.CollectionID, err = positiveID(raw)
		if err != nil {
			return types.BBoxQuery{}, types.NewValidationError("collection_id", ErrMsgInvalidCollectionID)
		}
	}
	return q, nil
}
