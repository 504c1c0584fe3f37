// Package status drives the device status indicator.
//
// The networking components signal progress by name through the Indicator
// interface: StartBlink at a rate while provisioning or reconnecting, StopBlink
// to restore the idle indication. Light is the in-process implementation; the
// only value it shares across goroutines is an atomic blink rate.
//
// Hub relays indicator changes (and any other event the daemon broadcasts)
// to websocket clients, standing in for a physical LED on headless hosts.
package status
