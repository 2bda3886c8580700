package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/marcus/pratica/internal/output"
	"github.com/marcus/pratica/internal/syncclient"
	"github.com/marcus/pratica/internal/syncconfig"
	"github.com/spf13/cobra"
)

var (
	errNotAuthenticated = errors.New("not authenticated")
	errSyncFailed       = errors.New("sync failed")
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API key for the sync server",
	Long: `Verifies an API key against the sync server and stores it in
~/.config/pratica/auth.json. Keys are issued by the server operator with
'pratica-sync admin create-user'.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		key, _ := cmd.Flags().GetString("key")
		if server == "" {
			server = syncconfig.GetServerURL()
		}

		if key == "" {
			if !isInteractive() {
				return errors.New("--key is required when not running in a terminal")
			}
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Servidor").Value(&server),
				huh.NewInput().Title("Chave de API").EchoMode(huh.EchoModePassword).Value(&key).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return errors.New("informe a chave")
						}
						return nil
					}),
			))
			if err := form.RunWithContext(cmd.Context()); err != nil {
				return err
			}
		}
		server = strings.TrimRight(strings.TrimSpace(server), "/")
		key = strings.TrimSpace(key)

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		me, err := syncclient.New(server, key).Me(ctx)
		if err != nil {
			output.Error("login failed: %v", err)
			return err
		}

		deviceID, err := syncconfig.GetDeviceID()
		if err != nil {
			return err
		}
		creds := &syncconfig.AuthCredentials{
			APIKey:    key,
			UserID:    me.UserID,
			Email:     me.Email,
			ServerURL: server,
			DeviceID:  deviceID,
		}
		if err := syncconfig.SaveAuth(creds); err != nil {
			output.Error("save credentials: %v", err)
			return err
		}
		if jsonFlag {
			return output.JSON(map[string]string{"user_id": me.UserID, "email": me.Email, "server": server})
		}
		output.Success("Logged in as %s (%s)", me.Email, me.UserID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Remove stored sync credentials",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := syncconfig.ClearAuth(); err != nil {
			return err
		}
		output.Success("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the signed-in sync user",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := syncconfig.LoadAuth()
		if err != nil {
			return err
		}
		if creds == nil || !syncconfig.IsAuthenticated() {
			if jsonFlag {
				return output.JSON(map[string]bool{"authenticated": false})
			}
			fmt.Println("Not logged in")
			return nil
		}
		if jsonFlag {
			return output.JSON(map[string]any{
				"authenticated": true,
				"user_id":       syncconfig.GetUserID(),
				"email":         creds.Email,
				"server":        syncconfig.GetServerURL(),
				"device_id":     creds.DeviceID,
			})
		}
		fmt.Printf("%s (%s)\nserver %s\ndevice %s\n", creds.Email, syncconfig.GetUserID(), syncconfig.GetServerURL(), creds.DeviceID)
		return nil
	},
}

func init() {
	loginCmd.Flags().String("server", "", "sync server URL")
	loginCmd.Flags().String("key", "", "API key")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}
