package provisioning

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDevice(model interfaces.PhoneModel) interfaces.Device {
	return interfaces.Device{
		ID:          testID,
		Model:       model,
		Label:       "Front desk",
		SIPUser:     "1001",
		SIPPassword: "p",
		DisplayName: "Lobby",
	}
}

func testSettings() interfaces.Settings {
	return interfaces.Settings{
		SIPServer: "pbx.example.com",
		SIPPort:   "5060",
		Contacts: []interfaces.Contact{
			{Name: "Reception", Extension: "100"},
			{Name: "Sales", Extension: "200"},
			{Name: "Support", Extension: "300"},
		},
	}
}

func TestRenderMaster_ReferencesDeviceFiles(t *testing.T) {
	out := RenderMaster(testDevice(interfaces.Model331))

	var manifest struct {
		XMLName     xml.Name `xml:"APPLICATION"`
		ConfigFiles string   `xml:"CONFIG_FILES,attr"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &manifest))

	files := strings.Split(manifest.ConfigFiles, ", ")
	assert.Equal(t, []string{
		"0004f2ac2ba0-phone.cfg",
		"0004f2ac2ba0-sip.cfg",
		"0004f2ac2ba0-directory.xml",
	}, files)

	for _, f := range files {
		assert.NotEqual(t, ArtifactUnresolved, Resolve(testID, f), f)
	}
}

func TestRenderPhone(t *testing.T) {
	out := RenderPhone(testDevice(interfaces.Model331))
	assert.Contains(t, out, `displayName="Lobby"`)
	assert.Contains(t, out, `reg.1.label="Front desk"`)
	assert.NotContains(t, out, "backlight")
	assertWellFormed(t, out)

	out = RenderPhone(testDevice(interfaces.Model601))
	assert.Contains(t, out, `<lcd lcd.backlight.onIntensity="2" lcd.backlight.idleIntensity="1" />`)
	assertWellFormed(t, out)
}

func TestRenderPhone_EscapesValues(t *testing.T) {
	device := testDevice(interfaces.Model331)
	device.DisplayName = `Tom & "Jerry" <ext>`
	out := RenderPhone(device)
	assertWellFormed(t, out)
	assert.NotContains(t, out, `"Jerry"`)
}

func TestRenderSIP(t *testing.T) {
	out := RenderSIP(testDevice(interfaces.Model331), testSettings())
	assert.Contains(t, out, `reg.1.server.1.address="pbx.example.com"`)
	assert.Contains(t, out, `reg.1.server.1.port="5060"`)
	assert.Contains(t, out, `reg.1.auth.userId="1001"`)
	assert.Contains(t, out, `reg.1.auth.password="p"`)
	assert.Contains(t, out, `reg.1.address="1001"`)
	assertWellFormed(t, out)
}

func TestRenderSIP_EmptyCredentialsKeepShape(t *testing.T) {
	device := interfaces.Device{ID: testID, Model: interfaces.Model331}
	out := RenderSIP(device, interfaces.DefaultSettings())
	assert.Contains(t, out, `reg.1.auth.userId=""`)
	assert.Contains(t, out, `reg.1.auth.password=""`)
	assert.Contains(t, out, `reg.1.server.1.address=""`)
	assertWellFormed(t, out)
}

func TestRenderSIP_DeviceServerFallback(t *testing.T) {
	device := testDevice(interfaces.Model331)
	device.SIPServer = "device-pbx"

	out := RenderSIP(device, interfaces.Settings{SIPPort: "5060"})
	assert.Contains(t, out, `reg.1.server.1.address="device-pbx"`)

	out = RenderSIP(device, testSettings())
	assert.Contains(t, out, `reg.1.server.1.address="pbx.example.com"`)
}

type directoryDoc struct {
	Items []struct {
		Name      string `xml:"ln"`
		Extension string `xml:"ct"`
		SpeedDial int    `xml:"sd"`
	} `xml:"item_list>item"`
}

func TestRenderDirectory_SpeedDialIndices(t *testing.T) {
	settings := testSettings()

	var doc directoryDoc
	require.NoError(t, xml.Unmarshal([]byte(RenderDirectory(settings)), &doc))
	require.Len(t, doc.Items, 3)
	for i, item := range doc.Items {
		assert.Equal(t, i+1, item.SpeedDial)
		assert.Equal(t, settings.Contacts[i].Name, item.Name)
	}

	// removing a contact renumbers the remaining ones contiguously
	settings.Contacts = append(settings.Contacts[:1], settings.Contacts[2:]...)
	doc = directoryDoc{}
	require.NoError(t, xml.Unmarshal([]byte(RenderDirectory(settings)), &doc))
	require.Len(t, doc.Items, 2)
	assert.Equal(t, "Support", doc.Items[1].Name)
	assert.Equal(t, 2, doc.Items[1].SpeedDial)
}

func TestRenderDirectory_Empty(t *testing.T) {
	out := RenderDirectory(interfaces.DefaultSettings())
	assert.Contains(t, out, "<item_list>")
	assertWellFormed(t, out)
}

func TestRenderBootAndGeneric(t *testing.T) {
	assertWellFormed(t, RenderBoot())
	generic := RenderGenericMaster()
	assertWellFormed(t, generic)
	assert.Contains(t, generic, `CONFIG_FILES_SPIP331="phone.cfg, sip.cfg"`)
	assert.Contains(t, generic, `CONFIG_FILES_SPIP601="phone.cfg, sip.cfg"`)
}

func TestRenderCombined(t *testing.T) {
	out := RenderCombined(testDevice(interfaces.Model601), testSettings())

	markers := []string{masterMarker, phoneMarker, sipMarker, directoryMarker}
	last := -1
	for _, m := range markers {
		idx := strings.Index(out, m)
		require.GreaterOrEqual(t, idx, 0, m)
		assert.Greater(t, idx, last, "sections out of order")
		last = idx
	}
	assert.Contains(t, out, "backlight")
	assert.Contains(t, out, "<sd>3</sd>")
}

func TestRender_Dispatch(t *testing.T) {
	device, settings := testDevice(interfaces.Model331), testSettings()

	out, err := Render(ArtifactBoot, device, settings)
	require.NoError(t, err)
	assert.Equal(t, RenderBoot(), out)

	out, err = Render(ArtifactDirectory, device, settings)
	require.NoError(t, err)
	assert.Equal(t, RenderDirectory(settings), out)

	_, err = Render(ArtifactUnresolved, device, settings)
	assert.ErrorIs(t, err, interfaces.ErrUnresolvedArtifact)
}

func assertWellFormed(t *testing.T, doc string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if err != nil {
			assert.Equal(t, "EOF", err.Error(), doc)
			return
		}
	}
}
