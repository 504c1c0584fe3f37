// Package portal serves the captive provisioning form.
//
// While the device runs its provisioning access point, Serve blocks on an
// HTTP server that lets a user enter network credentials and edit the broker
// settings record. The call ends with a Result describing how the session
// finished:
//
//   - Completed: the form was submitted; Result carries the edited record and
//     network credentials.
//   - Aborted: the user left without saving, the portal timed out, or the
//     context was cancelled.
//   - Failed: the listener could not be started or the server stopped
//     unexpectedly.
//
// Every settings field is rendered with a maxlength equal to its bound, and
// submitted values are bounded again on the server.
package portal
