// Package discovery advertises the controller on the local network over mDNS
// so home automation hubs can find it without a fixed address.
package discovery
