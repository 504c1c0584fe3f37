// Package session manages the message bus session for the fan.
//
// A Manager is polled from the control loop. While disconnected it makes at
// most one connection attempt per ReconnectInterval and, once connected,
// subscribes to each configured set topic. Messages arriving on transport
// goroutines are queued and dispatched to the command handler by Pump, so
// all state changes happen on the loop goroutine.
//
// Dispatch matches topics exactly, in the order power, oscillation, speed.
// An empty topic in the settings record disables that feature: it is never
// subscribed, never matched and never published to.
package session
