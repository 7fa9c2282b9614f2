/*
Package clients provides a client library for the provisioning backend.

AdminClient wraps the JSON admin API (devices and shared settings) and can
fetch provisioning artifacts the way a phone does, which is useful to check
what a device will receive.

	client := clients.NewAdminClient("http://localhost:8080")
	device, err := client.CreateDevice(ctx, interfaces.NewDevice{...})
	phoneCfg, err := client.FetchArtifact(ctx, "00:04:F2:AC:2B:A0", "phone.cfg")

Non-success responses are returned as *APIError carrying the status code and
the server's error message.
*/
package clients
