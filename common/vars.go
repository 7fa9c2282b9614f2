// Package common holds process wide helpers shared by every binary.
package common

// Version is overridden at build time with -ldflags "-X .../common.Version=...".
var Version = "dev"

// PackageName prefixes metric names and tags log records.
const PackageName = "sip_provisioning"
