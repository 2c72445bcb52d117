// Package session tracks logical sessions: an identity that survives a
// client's TCP connection dropping and reconnecting. It mints and looks up
// session ids, applies the sticky client-name resolution rules, and sweeps
// sessions whose grace period has expired.
package session
