package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementConnectivity records network and broker link changes.
const MeasurementConnectivity = "connectivity"

// WritePoint writes a point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. The point is
// queued for the next batch; delivery errors go to the SetOnError callback.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

// WriteConnectivity records a link state change.
// link is "wifi" or "mqtt"; state is the new state name.
func (c *Client) WriteConnectivity(device, link, state string) {
	c.WritePoint(MeasurementConnectivity,
		map[string]string{
			"device": device,
			"link":   link,
		},
		map[string]interface{}{
			"state": state,
			"up":    state == "connected" || state == "associated",
		},
	)
}
