// Package provisioner serves configuration artifacts to booting desk phones.
//
// Phones fetch a master manifest first and then the per-device files it
// references. The identity in the URL is normalized, so colon, dash and
// dotted hardware address notations all resolve to the same device.
//
// # Endpoints
//
//   - GET /provision/{mac}: single segment form, "{id}.cfg" or "{id}-{filename}"
//   - GET /provision/{mac}/{filename}: two-level form
//   - GET /provision-test: generic manifest, no registry access
//
// A request for a resolvable artifact from an unknown device registers the
// device with default values before rendering, so the first boot of a new
// phone yields a complete set of documents with empty SIP credentials.
// Unresolvable filenames are answered with 404 and an XML error document.
// Every response carries Cache-Control: no-cache, no-store, must-revalidate.
//
// # Usage
//
//	handler := provisioner.NewHandler(store, store, publisher, m, log)
//	srv, err := httpserver.New(cfg, metricsSrv, handler)
package provisioner
