// Package admin implements the JSON administration API of the provisioning
// backend: device management and the shared settings.
//
// Failed requests answer with {"error": "..."} and a status derived from the
// registry error: 400 for malformed bodies and validation failures, 404 for
// unknown devices and 500 when the snapshot could not be persisted. SIP
// passwords are redacted from every response except the one to a create.
//
// The API carries no authentication of its own and is meant to be exposed
// behind an authenticating proxy or on a private listener.
package admin
