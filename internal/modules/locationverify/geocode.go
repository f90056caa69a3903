// README: Reverse geocoding via the Google Maps API.
package locationverify

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

type MapsGeocoder struct {
	client *maps.Client
}

func NewMapsGeocoder(apiKey string) (*MapsGeocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &MapsGeocoder{client: client}, nil
}

// ReverseGeocode returns the formatted address of the first geocoding
// result, or an empty string when the position resolves to nothing.
func (g *MapsGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if len(results) == 0 {
		return "", nil
	}
	return results[0].FormattedAddress, nil
}
