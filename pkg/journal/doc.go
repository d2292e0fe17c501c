// Package journal persists provisioning run and step outcomes in a local
// bbolt database. The journal is what makes interrupted runs resumable: a
// step recorded as completed under the current config fingerprint is skipped
// by --resume, while any config change invalidates prior completions.
package journal
