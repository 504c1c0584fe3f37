// Package controller runs the single cooperative control loop.
//
// The loop owns the settings record and the fan state. Every tick it polls
// network association, then (when associated) the broker session, drains
// inbound bus messages and samples the physical speed switch. A provisioning
// request from another goroutine is queued and executed from the loop, with
// polling suspended until it finishes.
package controller
