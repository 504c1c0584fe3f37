// Package fan holds the device command and state model.
//
// A Processor owns the fan's State. It turns commands arriving from the
// message bus (or the physical speed switch) into actuator calls and
// republishes the actuated state through a StatePublisher. Nothing else
// in the daemon writes State.
//
// Payload contracts:
//   - power and oscillation: "ON" or "OFF" (case-sensitive)
//   - speed: "off", "low", "medium" or "high"
//
// Turning power off always publishes speed "off" as well. A speed command
// of "off" is handled as a power-off. Speed commands never change Power.
//
// Confirmed transitions are offered to Recorders. SQLiteHistory keeps a
// local audit trail and InfluxRecorder forwards them as telemetry.
package fan
