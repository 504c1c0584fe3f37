// Package settings holds the broker settings record and the store that persists it.
//
// The record is the flat set of strings an installer edits in the provisioning
// portal: broker address and credentials, six topics and the device identifier.
// Every value is a bounded Field; anything longer than the field maximum is
// truncated on the way in, never stored oversize.
//
// The Store reads and writes the record as a single JSON document through a
// Storage collaborator. Loading never fails: absent keys, a missing document or
// an unreadable one all yield empty fields and a log record. Saving replaces the
// whole document at once.
//
//	store := settings.NewStore(settings.NewFileStorage("/var/lib/fancontrol/config.json"))
//	rec := store.Load()
//	rec.Set(settings.KeyPowerSetTopic, "fan/power/set")
//	if err := store.Save(rec); err != nil { ... }
package settings
