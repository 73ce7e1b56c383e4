package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint writes a point stamped with the current time.
//
// Parameters:
//   - measurement: The measurement name (e.g., "energy", "vehicle")
//   - tags: Point tags; default tags are added, point tags win on conflict
//   - fields: Field values
//
// Example:
//
//	client.WritePoint("energy", nil, map[string]any{"soc": 0.62, "power_kw": -3.1})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. The write
// is dropped silently while the client is closed or fields is empty.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(measurement, c.mergeTags(tags), fields, timestamp)
	c.writeAPI.WritePoint(point)
}

func (c *Client) mergeTags(tags map[string]string) map[string]string {
	if len(c.tags) == 0 {
		return tags
	}
	merged := make(map[string]string, len(c.tags)+len(tags))
	for k, v := range c.tags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return merged
}
