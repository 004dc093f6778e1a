package commands

import (
	"database/sql"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/auth"
	"github.com/teranos/punchclock/db"
	"github.com/teranos/punchclock/display"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
)

// TokenCmd manages device tokens against the server database
var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue and revoke device tokens on the remote authority",
	Long: `Issue and revoke the bearer tokens devices sync with.

These commands operate directly on the server database
(server.database_path) and must run where the server runs. The signing
secret (server.jwt_secret) has to match the running server.

Examples:
  punchclock token issue --email me@example.com --device laptop
  punchclock token sessions --email me@example.com
  punchclock token revoke <session-id>`,
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a token for a device, creating the user on first use",
	Args:  cobra.NoArgs,
	RunE:  runTokenIssue,
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <session-id>",
	Short: "Revoke a device session",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenRevoke,
}

var tokenSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List a user's device sessions",
	Args:  cobra.NoArgs,
	RunE:  runTokenSessions,
}

func init() {
	tokenIssueCmd.Flags().String("email", "", "User email (required)")
	tokenIssueCmd.Flags().String("name", "", "Display name")
	tokenIssueCmd.Flags().String("device", "", "Device id (required)")
	tokenIssueCmd.Flags().String("device-name", "", "Human readable device name")
	_ = tokenIssueCmd.MarkFlagRequired("email")
	_ = tokenIssueCmd.MarkFlagRequired("device")

	tokenSessionsCmd.Flags().String("email", "", "User email (required)")
	_ = tokenSessionsCmd.MarkFlagRequired("email")

	TokenCmd.AddCommand(tokenIssueCmd, tokenRevokeCmd, tokenSessionsCmd)
}

// openAuth opens the server database for token management
func openAuth(requireSecret bool) (*auth.Service, *sql.DB, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load config")
	}
	if requireSecret && cfg.Server.JWTSecret == "" {
		return nil, nil, errors.WithHint(
			errors.NewValidationError("server.jwt_secret is not set"),
			"a token signed with a throwaway secret would be rejected by the server; set server.jwt_secret (or PUNCHCLOCK_JWT_SECRET)")
	}

	log := logger.Logger.Named("token")
	database, err := db.OpenWithMigrations(cfg.Server.DatabasePath, db.SchemaRemote, log)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open server database")
	}
	svc, err := auth.NewService(cfg.Server, auth.NewStore(database), log)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return svc, database, nil
}

func runTokenIssue(cmd *cobra.Command, args []string) error {
	svc, database, err := openAuth(true)
	if err != nil {
		return err
	}
	defer database.Close()

	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	device, _ := cmd.Flags().GetString("device")
	deviceName, _ := cmd.Flags().GetString("device-name")

	issued, err := svc.IssueToken(cmd.Context(), email, name, device, deviceName)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), issued)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "token:   %s\n", issued.Token)
	fmt.Fprintf(out, "user_id: %s\n", issued.UserID)
	fmt.Fprintf(out, "session: %s\n", issued.SessionID)
	fmt.Fprintf(out, "expires: %s\n", issued.ExpiresAt.Format("2006-01-02 15:04 MST"))
	pterm.Info.Println("On the device, set sync.token and sync.user_id in ~/.punchclock/am.toml")
	return nil
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	svc, database, err := openAuth(false)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := svc.Revoke(cmd.Context(), args[0]); err != nil {
		return err
	}
	pterm.Success.Printfln("Session %s revoked", args[0])
	return nil
}

func runTokenSessions(cmd *cobra.Command, args []string) error {
	svc, database, err := openAuth(false)
	if err != nil {
		return err
	}
	defer database.Close()

	email, _ := cmd.Flags().GetString("email")
	user, err := svc.Store().GetUserByEmail(cmd.Context(), email)
	if err != nil {
		return err
	}
	sessions, err := svc.Store().ListUserSessions(cmd.Context(), user.ID)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), sessions)
	}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		state := "active"
		if s.RevokedAt != nil {
			state = "revoked"
		}
		rows = append(rows, []string{
			s.ID,
			s.DeviceID,
			s.DeviceName,
			s.LastActiveAt.Format("2006-01-02 15:04"),
			s.ExpiresAt.Format("2006-01-02 15:04"),
			state,
		})
	}
	return display.Table(cmd.OutOrStdout(),
		[]string{"Session", "Device", "Name", "Last active", "Expires", "State"}, rows)
}
