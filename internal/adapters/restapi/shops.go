package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/nearyou/nearsync/internal/core/domain"
)

// shopRecord is the tagged union of known upstream shop shapes: ETL rows use
// shop_id/shop_name with a nested geometry, the query service returns id/name
// with flat coordinates.
type shopRecord struct {
	ID       *int64   `json:"id"`
	ShopID   *int64   `json:"shop_id"`
	Name     string   `json:"name"`
	ShopName string   `json:"shop_name"`
	Category string   `json:"category"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Geom     *struct {
		// GeoJSON order: [lon, lat]
		Coordinates []float64 `json:"coordinates"`
	} `json:"geom"`
}

// toPOI normalizes a record into the canonical POI shape. Records matching
// neither naming convention or missing coordinates are parse errors.
func (r shopRecord) toPOI() (domain.POI, error) {
	poi := domain.POI{Category: r.Category}

	switch {
	case r.ID != nil:
		poi.ID = strconv.FormatInt(*r.ID, 10)
	case r.ShopID != nil:
		poi.ID = strconv.FormatInt(*r.ShopID, 10)
	default:
		return domain.POI{}, fmt.Errorf("shop record without id")
	}

	poi.Name = r.Name
	if poi.Name == "" {
		poi.Name = r.ShopName
	}
	if poi.Name == "" {
		return domain.POI{}, fmt.Errorf("shop record %s without name", poi.ID)
	}

	switch {
	case r.Lat != nil && r.Lon != nil:
		poi.Lat, poi.Lon = *r.Lat, *r.Lon
	case r.Geom != nil && len(r.Geom.Coordinates) == 2:
		poi.Lat, poi.Lon = r.Geom.Coordinates[1], r.Geom.Coordinates[0]
	default:
		return domain.POI{}, fmt.Errorf("shop record %s without coordinates", poi.ID)
	}

	return poi, nil
}

// ShopsInArea implements ports.ShopProvider via GET /api/shops/inArea.
// Individual malformed records are dropped with a warning; an unparsable body
// is an error so the caller can degrade to synthetic data.
func (c *Client) ShopsInArea(ctx context.Context, bounds domain.Bounds) ([]domain.POI, error) {
	q := url.Values{}
	q.Set("n", strconv.FormatFloat(bounds.North, 'f', -1, 64))
	q.Set("s", strconv.FormatFloat(bounds.South, 'f', -1, 64))
	q.Set("e", strconv.FormatFloat(bounds.East, 'f', -1, 64))
	q.Set("w", strconv.FormatFloat(bounds.West, 'f', -1, 64))

	data, err := c.get(ctx, "/api/shops/inArea", q)
	if err != nil {
		return nil, err
	}

	var records []shopRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode shop records: %w", err)
	}

	pois := make([]domain.POI, 0, len(records))
	for _, rec := range records {
		poi, err := rec.toPOI()
		if err != nil {
			slog.Warn("dropping malformed shop record", "error", err)
			continue
		}
		pois = append(pois, poi)
	}
	return pois, nil
}
