package fan

import (
	"context"
	"time"
)

// measurementFanState is the telemetry measurement name.
const measurementFanState = "fan_state"

// PointWriter writes one telemetry point. The InfluxDB client satisfies it.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time)
}

// InfluxRecorder forwards transitions as telemetry points.
// Writes are batched by the client and never block the caller.
type InfluxRecorder struct {
	writer PointWriter
}

// NewInfluxRecorder creates a recorder writing through w.
func NewInfluxRecorder(w PointWriter) *InfluxRecorder {
	return &InfluxRecorder{writer: w}
}

// RecordTransition writes the transition as a fan_state point.
func (r *InfluxRecorder) RecordTransition(_ context.Context, t Transition) error {
	r.writer.WritePointWithTime(measurementFanState,
		map[string]string{
			"device":  t.Device,
			"command": t.Command.String(),
			"source":  t.Source,
		},
		map[string]interface{}{
			"power":       t.State.Power,
			"speed":       t.State.Speed.String(),
			"speed_level": int(t.State.Speed),
			"oscillation": t.State.Oscillation,
		},
		t.At,
	)
	return nil
}
