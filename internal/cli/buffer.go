package cli

import (
	"fmt"

	"github.com/couchcryptid/hazard-map-service/internal/geo"
)

// Execute implements the go-flags Commander interface for BufferCommand.
func (c *BufferCommand) Execute(_ []string) error {
	distance, err := geo.ParseDistance(c.Distance)
	if err != nil {
		return err
	}
	dataset, err := geo.LoadDataset(c.Rivers)
	if err != nil {
		return err
	}
	zones, err := geo.BufferFeatures(dataset, distance)
	if err != nil {
		return err
	}

	data, err := geo.ZoneFeatureCollection(zones).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode zones: %w", err)
	}
	c.globals.logger().Info("zones buffered", "distance_m", distance, "zone_count", len(zones))
	_, err = fmt.Fprintln(c.out, string(data))
	return err
}
