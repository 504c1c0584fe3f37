// Package wifi manages network association and provisioning.
//
// Manager drives a Radio through three states: Disassociated, Provisioning
// and Associated. At startup RunProvisioning makes one silent association
// attempt with the stored credentials and falls back to the captive portal.
// After that, PollReconnect is called from the control loop and retries
// association at most once every five seconds while the link is down.
//
// Two radios are provided. NMCLIRadio drives NetworkManager through nmcli.
// HostRadio is used when the host manages its own networking and always
// reports the link as up.
package wifi
