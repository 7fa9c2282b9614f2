package provisioning

import (
	"strings"

	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// ArtifactKind tags the configuration document a device asked for.
type ArtifactKind int

const (
	ArtifactUnresolved ArtifactKind = iota
	ArtifactMaster
	ArtifactPhone
	ArtifactSIP
	ArtifactDirectory
	ArtifactBoot
	ArtifactCombined
)

// String returns the name used in logs, metrics and events.
func (k ArtifactKind) String() string {
	switch k {
	case ArtifactMaster:
		return "master"
	case ArtifactPhone:
		return "phone"
	case ArtifactSIP:
		return "sip"
	case ArtifactDirectory:
		return "directory"
	case ArtifactBoot:
		return "boot"
	case ArtifactCombined:
		return "combined"
	default:
		return "unresolved"
	}
}

// GenericMasterFilename is requested by phones that have not been told their own address yet.
const GenericMasterFilename = "000000000000.cfg"

// Per-device filename suffixes, appended to the canonical identity.
const (
	phoneSuffix     = "-phone.cfg"
	sipSuffix       = "-sip.cfg"
	directorySuffix = "-directory.xml"
)

// PhoneFilename is the per-device phone profile the master manifest points to.
func PhoneFilename(id interfaces.DeviceID) string { return id.String() + phoneSuffix }

// SIPFilename is the per-device SIP profile the master manifest points to.
func SIPFilename(id interfaces.DeviceID) string { return id.String() + sipSuffix }

// DirectoryFilename is the per-device directory the master manifest points to.
func DirectoryFilename(id interfaces.DeviceID) string { return id.String() + directorySuffix }

// Resolve maps a requested filename to the artifact it names for device id.
// Matching is case-insensitive, an empty filename names the master manifest.
func Resolve(id interfaces.DeviceID, filename string) ArtifactKind {
	if id == "" {
		return ArtifactUnresolved
	}

	name := strings.ToLower(filename)
	switch name {
	case "", GenericMasterFilename, id.String() + ".cfg":
		return ArtifactMaster
	case PhoneFilename(id), "phone.cfg":
		return ArtifactPhone
	case SIPFilename(id), "sip.cfg":
		return ArtifactSIP
	case "bootrom.cfg":
		return ArtifactBoot
	case DirectoryFilename(id), "directory.xml":
		return ArtifactDirectory
	case "config.cfg":
		return ArtifactCombined
	default:
		return ArtifactUnresolved
	}
}

// Request is a resolved provisioning request.
type Request struct {
	RawID    string
	ID       interfaces.DeviceID
	Filename string
	Kind     ArtifactKind
}

// ResolvePath resolves the two-level form /<mac>/<filename>.
func ResolvePath(rawID, filename string) Request {
	id := interfaces.NormalizeMAC(rawID)
	return Request{
		RawID:    rawID,
		ID:       id,
		Filename: filename,
		Kind:     Resolve(id, filename),
	}
}

// ResolveSegment resolves the single segment form /<mac>-<filename> used by
// firmware that cannot be configured with a two-level path.
//
// The identity ends at the first dash, or failing that at the first dot
// (where the whole segment is kept as filename so <id>.cfg stays a master
// manifest), or spans the whole segment. Filenames this path cannot resolve
// are served the master manifest instead of being rejected.
func ResolveSegment(segment string) Request {
	rawID, filename := segment, ""
	if i := strings.IndexByte(segment, '-'); i >= 0 {
		rawID, filename = segment[:i], segment[i+1:]
	} else if i := strings.IndexByte(segment, '.'); i >= 0 {
		rawID, filename = segment[:i], segment
	}

	req := ResolvePath(rawID, filename)
	if req.Kind == ArtifactUnresolved && req.ID != "" {
		req.Kind = ArtifactMaster
	}
	return req
}
