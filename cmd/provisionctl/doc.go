// Package main (cmd/provisionctl) is a command line client for the admin
// API of the provisioning server.
//
// Example usage:
//
//	provisionctl devices add --mac 00:04:F2:AC:2B:A0 --model 331 \
//	    --sip-server pbx.example --sip-user 1001 --sip-password secret --display-name Lobby
//	provisionctl devices update --mac 0004f2ac2ba0 --label "Front desk"
//	provisionctl devices list
//	provisionctl settings set --sip-server pbx.example --sip-port 5060
//	provisionctl contacts add --name Reception --extension 100
//	provisionctl fetch --mac 0004f2ac2ba0 --file sip.cfg
//
// The server URL defaults to http://127.0.0.1:8080 and can be set with
// --server or SIPPROV_SERVER.
package main
