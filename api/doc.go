/*
Package api contains the HTTP surface of the provisioning backend.

It is organized into three subpackages:

 1. provisioner - Unauthenticated XML endpoints fetched by booting phones
 2. admin - JSON API managing devices and the shared settings
 3. clients - Client library for the admin API, used by provisionctl

Handlers implement RegisterRoutes(chi.Router) and are mounted by the
httpserver package. This package holds the request and response types
shared by the handlers and the client.

# Endpoints

Provisioning (XML, Cache-Control: no-cache, no-store, must-revalidate):

  - GET /provision/{mac} - Master manifest, or the artifact named after the first dash
  - GET /provision/{mac}/{filename} - Any artifact of the device
  - GET /provision-test - Generic manifest for firmware diagnostics

Administration (JSON):

  - GET /devices - List devices, passwords redacted
  - POST /devices - Create a device
  - PUT /devices - Partially update a device identified by "mac" or "id"
  - DELETE /devices?mac=... - Delete a device
  - GET /settings - Shared settings
  - PUT /settings - Merge into the shared settings
*/
package api
