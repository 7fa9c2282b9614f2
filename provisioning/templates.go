package provisioning

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// Section markers separating the documents of the combined artifact.
const (
	masterMarker    = "<!-- MASTER CONFIG -->"
	phoneMarker     = "<!-- PHONE CONFIG -->"
	sipMarker       = "<!-- SIP CONFIG -->"
	directoryMarker = "<!-- DIRECTORY -->"
)

// Device wide defaults baked into the phone profile.
const (
	sntpServer = "pool.ntp.org"
	digitMap   = "[2-9]11|0T|011xxx.T|[0-1][2-9]xxxxxxxxx|[2-9]xxxxxxxxx|[2-9]xxx|*xx.T"
)

// esc escapes a value for use inside an attribute or element body.
func esc(s string) string {
	var b strings.Builder
	// strings.Builder never fails to write
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// RenderMaster renders the master manifest listing the per-device files
// the phone must fetch next.
func RenderMaster(device interfaces.Device) string {
	files := strings.Join([]string{
		PhoneFilename(device.ID),
		SIPFilename(device.ID),
		DirectoryFilename(device.ID),
	}, ", ")

	var b strings.Builder
	b.WriteString(xmlHeader)
	fmt.Fprintf(&b, `<APPLICATION APP_FILE_PATH="sip.ld" CONFIG_FILES="%s" MISC_FILES="" LOG_FILE_DIRECTORY="" OVERRIDES_DIRECTORY="" CONTACTS_DIRECTORY="">`+"\n", esc(files))
	b.WriteString("</APPLICATION>")
	return b.String()
}

// RenderGenericMaster renders a manifest not bound to any device, pointing every
// model at the generic profile names. Used to check what a phone sees before it
// is known to the registry.
func RenderGenericMaster() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<APPLICATION APP_FILE_PATH="sip.ld" CONFIG_FILES="" MISC_FILES="" LOG_FILE_DIRECTORY="" OVERRIDES_DIRECTORY="" CONTACTS_DIRECTORY="">` + "\n")
	for _, model := range []interfaces.PhoneModel{interfaces.Model601, interfaces.Model331} {
		fmt.Fprintf(&b, `  <APPLICATION_SPIP%[1]s APP_FILE_PATH_SPIP%[1]s="sip.ld" CONFIG_FILES_SPIP%[1]s="phone.cfg, sip.cfg" />`+"\n", model)
	}
	b.WriteString("</APPLICATION>")
	return b.String()
}

// RenderBoot renders the static boot profile.
func RenderBoot() string {
	return xmlHeader + "<PHONE_CONFIG>\n  <BOOT_CONFIG />\n</PHONE_CONFIG>"
}

// RenderPhone renders the phone profile. The backlight block is only present
// for models that have one.
func RenderPhone(device interfaces.Device) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<phone1>\n")
	fmt.Fprintf(&b, `  <reg reg.1.displayName="%s" reg.1.label="%s" />`+"\n", esc(device.DisplayName), esc(device.Label))
	b.WriteString("  <tcpIpApp>\n")
	fmt.Fprintf(&b, `    <sntp tcpIpApp.sntp.address="%s" />`+"\n", sntpServer)
	b.WriteString("  </tcpIpApp>\n")
	fmt.Fprintf(&b, `  <dialplan dialplan.digitmap="%s" />`+"\n", esc(digitMap))
	if device.Model.HasBacklight() {
		b.WriteString(`  <lcd lcd.backlight.onIntensity="2" lcd.backlight.idleIntensity="1" />` + "\n")
	}
	b.WriteString(`  <up up.oneTouchVoiceMail="1" />` + "\n")
	b.WriteString("</phone1>")
	return b.String()
}

// RenderSIP renders the SIP registration profile. The registration server comes
// from the shared settings, or from the device record when none is configured.
func RenderSIP(device interfaces.Device, settings interfaces.Settings) string {
	server := settings.SIPServer
	if server == "" {
		server = device.SIPServer
	}

	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<sip>\n")
	fmt.Fprintf(&b, `  <reg reg.1.server.1.address="%s"`+"\n", esc(server))
	fmt.Fprintf(&b, `       reg.1.server.1.port="%s"`+"\n", esc(settings.SIPPort))
	fmt.Fprintf(&b, `       reg.1.auth.userId="%s"`+"\n", esc(device.SIPUser))
	fmt.Fprintf(&b, `       reg.1.auth.password="%s"`+"\n", esc(device.SIPPassword))
	fmt.Fprintf(&b, `       reg.1.address="%s" />`+"\n", esc(device.SIPUser))
	fmt.Fprintf(&b, `  <voIpProt voIpProt.server.1.address="%s" voIpProt.server.1.port="%s" />`+"\n", esc(server), esc(settings.SIPPort))
	b.WriteString("</sip>")
	return b.String()
}

// RenderDirectory renders the shared contact list. Speed-dial indices are the
// 1-based positions of the contacts.
func RenderDirectory(settings interfaces.Settings) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<directory>\n")
	b.WriteString("  <item_list>\n")
	for i, contact := range settings.Contacts {
		b.WriteString("  <item>\n")
		fmt.Fprintf(&b, "    <ln>%s</ln>\n", esc(contact.Name))
		fmt.Fprintf(&b, "    <ct>%s</ct>\n", esc(contact.Extension))
		fmt.Fprintf(&b, "    <sd>%s</sd>\n", strconv.Itoa(i+1))
		b.WriteString("  </item>\n")
	}
	b.WriteString("  </item_list>\n")
	b.WriteString("</directory>")
	return b.String()
}

// RenderCombined concatenates the four per-device documents behind comment
// markers, for manual inspection.
func RenderCombined(device interfaces.Device, settings interfaces.Settings) string {
	return strings.Join([]string{
		masterMarker + "\n" + RenderMaster(device),
		phoneMarker + "\n" + RenderPhone(device),
		sipMarker + "\n" + RenderSIP(device, settings),
		directoryMarker + "\n" + RenderDirectory(settings),
	}, "\n\n")
}

// Render dispatches to the renderer of kind.
func Render(kind ArtifactKind, device interfaces.Device, settings interfaces.Settings) (string, error) {
	switch kind {
	case ArtifactMaster:
		return RenderMaster(device), nil
	case ArtifactPhone:
		return RenderPhone(device), nil
	case ArtifactSIP:
		return RenderSIP(device, settings), nil
	case ArtifactDirectory:
		return RenderDirectory(settings), nil
	case ArtifactBoot:
		return RenderBoot(), nil
	case ArtifactCombined:
		return RenderCombined(device, settings), nil
	default:
		return "", interfaces.ErrUnresolvedArtifact
	}
}
