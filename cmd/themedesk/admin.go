package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"themedesk/internal/database"
	"themedesk/internal/middleware"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending PostgreSQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := database.Connect(ctx, cfg.DSN())
		if err != nil {
			return err
		}
		defer db.Close()

		if migrateStatus {
			return database.MigrationStatus(ctx, db)
		}
		return database.Migrate(ctx, db)
	},
}

var operatorHashCmd = &cobra.Command{
	Use:   "operator-hash [password]",
	Short: "Print a bcrypt hash for OPERATOR_PASSWORD_HASH",
	Long:  "Print a bcrypt hash for OPERATOR_PASSWORD_HASH. Without an argument the password is read from the first line of stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if len(password) < 12 {
			return errors.New("password must be at least 12 characters")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

var totpPNG string

var totpInitCmd = &cobra.Command{
	Use:   "totp-init",
	Short: "Generate a TOTP secret for OPERATOR_TOTP_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      middleware.TOTPIssuer,
			AccountName: cfg.OperatorUser,
		})
		if err != nil {
			return fmt.Errorf("generate totp secret: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "OPERATOR_TOTP_SECRET=%s\n", key.Secret())
		fmt.Fprintf(out, "enrollment URL: %s\n", key.URL())

		if totpPNG != "" {
			if err := qrcode.WriteFile(key.URL(), qrcode.Medium, 256, totpPNG); err != nil {
				return fmt.Errorf("write qr code: %w", err)
			}
			fmt.Fprintf(out, "QR code written to %s\n", totpPNG)
		} else {
			fmt.Fprintln(out, "scan it from GET /api/operator/totp.png once the secret is configured")
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "print migration status instead of migrating")
	totpInitCmd.Flags().StringVar(&totpPNG, "png", "", "also write the enrollment QR code to this PNG file")
}
