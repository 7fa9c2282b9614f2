package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"slices"

	"github.com/ruteri/sip-provisioning-backend/api/clients"
	"github.com/ruteri/sip-provisioning-backend/cmd/flags"
	"github.com/ruteri/sip-provisioning-backend/cryptoutils"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/urfave/cli/v2"
)

var (
	macFlag = &cli.StringFlag{
		Name:     "mac",
		Required: true,
		Usage:    "hardware address of the phone, any notation",
	}
	modelFlag       = &cli.StringFlag{Name: "model", Usage: "phone model (331 or 601)"}
	labelFlag       = &cli.StringFlag{Name: "label", Usage: "free-form label"}
	sipServerFlag   = &cli.StringFlag{Name: "sip-server", Usage: "SIP registrar host"}
	sipUserFlag     = &cli.StringFlag{Name: "sip-user", Usage: "SIP user / extension"}
	sipPasswordFlag = &cli.StringFlag{Name: "sip-password", Usage: "SIP password"}
	displayNameFlag = &cli.StringFlag{Name: "display-name", Usage: "name shown on the phone display"}
)

func main() {
	app := &cli.App{
		Name:  "provisionctl",
		Usage: "Manage devices and settings of a SIP provisioning server",
		Flags: []cli.Flag{flags.ServerURLFlag},
		Commands: []*cli.Command{
			devicesCommand(),
			settingsCommand(),
			contactsCommand(),
			passphraseCommand(),
			{
				Name:  "fetch",
				Usage: "Fetch a provisioning file the way the phone would (registers unknown phones)",
				Flags: []cli.Flag{
					macFlag,
					&cli.StringFlag{Name: "file", Usage: "file name, empty for the master manifest"},
				},
				Action: func(cCtx *cli.Context) error {
					body, err := client(cCtx).FetchArtifact(cCtx.Context, cCtx.String("mac"), cCtx.String("file"))
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(append(body, '\n'))
					return err
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func client(cCtx *cli.Context) *clients.AdminClient {
	return clients.NewAdminClient(cCtx.String(flags.ServerURLFlag.Name))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "Manage phones",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List phones, most recently added first",
				Action: func(cCtx *cli.Context) error {
					devices, err := client(cCtx).ListDevices(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(devices)
				},
			},
			{
				Name:  "add",
				Usage: "Add or replace a phone",
				Flags: []cli.Flag{macFlag, modelFlag, labelFlag, sipServerFlag, sipUserFlag, sipPasswordFlag, displayNameFlag},
				Action: func(cCtx *cli.Context) error {
					device, err := client(cCtx).CreateDevice(cCtx.Context, interfaces.NewDevice{
						MAC:         cCtx.String(macFlag.Name),
						Model:       interfaces.PhoneModel(cCtx.String(modelFlag.Name)),
						Label:       cCtx.String(labelFlag.Name),
						SIPServer:   cCtx.String(sipServerFlag.Name),
						SIPUser:     cCtx.String(sipUserFlag.Name),
						SIPPassword: cCtx.String(sipPasswordFlag.Name),
						DisplayName: cCtx.String(displayNameFlag.Name),
					})
					if err != nil {
						return err
					}
					return printJSON(device.Redacted())
				},
			},
			{
				Name:  "update",
				Usage: "Change the given fields of a phone",
				Flags: []cli.Flag{macFlag, modelFlag, labelFlag, sipServerFlag, sipUserFlag, sipPasswordFlag, displayNameFlag},
				Action: func(cCtx *cli.Context) error {
					device, err := client(cCtx).UpdateDevice(cCtx.Context, cCtx.String(macFlag.Name), deviceUpdateFromFlags(cCtx))
					if err != nil {
						return err
					}
					return printJSON(device)
				},
			},
			{
				Name:  "delete",
				Usage: "Delete a phone",
				Flags: []cli.Flag{macFlag},
				Action: func(cCtx *cli.Context) error {
					return client(cCtx).DeleteDevice(cCtx.Context, cCtx.String(macFlag.Name))
				},
			},
		},
	}
}

func deviceUpdateFromFlags(cCtx *cli.Context) interfaces.DeviceUpdate {
	optional := func(flag *cli.StringFlag) *string {
		if !cCtx.IsSet(flag.Name) {
			return nil
		}
		v := cCtx.String(flag.Name)
		return &v
	}

	var update interfaces.DeviceUpdate
	if cCtx.IsSet(modelFlag.Name) {
		model := interfaces.PhoneModel(cCtx.String(modelFlag.Name))
		update.Model = &model
	}
	update.Label = optional(labelFlag)
	update.SIPServer = optional(sipServerFlag)
	update.SIPUser = optional(sipUserFlag)
	update.SIPPassword = optional(sipPasswordFlag)
	update.DisplayName = optional(displayNameFlag)
	return update
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change the shared settings",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show the shared settings",
				Action: func(cCtx *cli.Context) error {
					settings, err := client(cCtx).GetSettings(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(settings)
				},
			},
			{
				Name:  "set",
				Usage: "Change the SIP registrar and port",
				Flags: []cli.Flag{
					sipServerFlag,
					&cli.StringFlag{Name: "sip-port", Usage: "SIP registrar port"},
				},
				Action: func(cCtx *cli.Context) error {
					var update interfaces.SettingsUpdate
					if cCtx.IsSet(sipServerFlag.Name) {
						v := cCtx.String(sipServerFlag.Name)
						update.SIPServer = &v
					}
					if cCtx.IsSet("sip-port") {
						v := cCtx.String("sip-port")
						update.SIPPort = &v
					}
					settings, err := client(cCtx).UpdateSettings(cCtx.Context, update)
					if err != nil {
						return err
					}
					return printJSON(settings)
				},
			},
		},
	}
}

func contactsCommand() *cli.Command {
	extensionFlag := &cli.StringFlag{Name: "extension", Required: true, Usage: "extension dialed by the speed-dial entry"}

	return &cli.Command{
		Name:  "contacts",
		Usage: "Edit the shared speed-dial directory",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Append a contact",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Usage: "contact name"},
					extensionFlag,
				},
				Action: func(cCtx *cli.Context) error {
					return editContacts(cCtx, func(contacts []interfaces.Contact) []interfaces.Contact {
						return append(contacts, interfaces.Contact{
							Name:      cCtx.String("name"),
							Extension: cCtx.String(extensionFlag.Name),
						})
					})
				},
			},
			{
				Name:  "remove",
				Usage: "Remove every contact with the given extension",
				Flags: []cli.Flag{extensionFlag},
				Action: func(cCtx *cli.Context) error {
					return editContacts(cCtx, func(contacts []interfaces.Contact) []interfaces.Contact {
						return slices.DeleteFunc(contacts, func(c interfaces.Contact) bool {
							return c.Extension == cCtx.String(extensionFlag.Name)
						})
					})
				},
			},
		},
	}
}

// editContacts replaces the whole directory, so concurrent edits of
// different admins may overwrite each other.
func editContacts(cCtx *cli.Context, edit func([]interfaces.Contact) []interfaces.Contact) error {
	c := client(cCtx)

	settings, err := c.GetSettings(cCtx.Context)
	if err != nil {
		return err
	}

	contacts := edit(settings.Contacts)
	settings, err = c.UpdateSettings(cCtx.Context, interfaces.SettingsUpdate{Contacts: &contacts})
	if err != nil {
		return fmt.Errorf("failed to save contacts: %w", err)
	}
	return printJSON(settings.Contacts)
}

func passphraseCommand() *cli.Command {
	return &cli.Command{
		Name:  "passphrase",
		Usage: "Split the credential sealing passphrase into operator shares, or recover it (local, no server)",
		Subcommands: []*cli.Command{
			{
				Name:  "split",
				Usage: "Split a passphrase into Shamir shares",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "passphrase",
						EnvVars:  []string{"SIPPROV_CREDENTIAL_PASSPHRASE"},
						Required: true,
						Usage:    "passphrase to split",
					},
					&cli.IntFlag{Name: "parts", Value: 5, Usage: "number of shares"},
					&cli.IntFlag{Name: "threshold", Value: 3, Usage: "shares required to recover"},
				},
				Action: func(cCtx *cli.Context) error {
					shares, err := cryptoutils.SplitPassphrase(cCtx.String("passphrase"), cCtx.Int("parts"), cCtx.Int("threshold"))
					if err != nil {
						return err
					}
					for _, share := range shares {
						fmt.Println(share)
					}
					return nil
				},
			},
			{
				Name:      "combine",
				Usage:     "Recover a passphrase from shares given as arguments",
				ArgsUsage: "SHARE SHARE [SHARE...]",
				Action: func(cCtx *cli.Context) error {
					passphrase, err := cryptoutils.CombinePassphrase(cCtx.Args().Slice())
					if err != nil {
						return err
					}
					fmt.Println(passphrase)
					return nil
				},
			},
		},
	}
}
