// Package provisioning turns a device request into the XML document it asked for.
//
// Phones boot, request a master manifest derived from their hardware address and
// then fetch every file the manifest lists. Resolve, ResolvePath and ResolveSegment
// map the requested path onto an ArtifactKind; the Render functions are pure and
// only read the device record and the shared settings.
//
// The documents keep a fixed shape: absent values render as empty attributes and
// are never dropped, since phone firmware rejects configuration with missing
// elements without reporting why.
package provisioning
