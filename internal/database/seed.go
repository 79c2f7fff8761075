package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"themedesk/internal/models"
)

// seedThemes are the development themes inserted per segment.
var seedThemes = map[models.Segment][][2]string{
	models.SegmentPreRetiree: {
		{"Catch-up contributions", "How the extra 401(k) and IRA room after 50 adds up."},
		{"Health insurance before Medicare", "Options for covering the gap if you retire before 65."},
	},
	models.SegmentRetiree: {
		{"Tax time tips", "Simple ways to keep more of your refund this year."},
		{"Estate planning", "Why a will alone may not be enough for your family."},
	},
}

// Seed populates an empty themes table with pending development themes
// for month. It does nothing if any theme already exists.
func Seed(ctx context.Context, db *sql.DB, month string) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM themes").Scan(&count); err != nil {
		return fmt.Errorf("seed check themes: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	inserted := 0
	for _, seg := range models.Segments() {
		for _, th := range seedThemes[seg] {
			_, err := db.ExecContext(ctx, `
				INSERT INTO themes (id, segment, month, subject, description, status)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, uuid.New(), string(seg), month, th[0], th[1], string(models.ThemeStatusPending))
			if err != nil {
				return fmt.Errorf("seed insert theme: %w", err)
			}
			inserted++
		}
	}

	slog.Info("database seeded with development themes", "month", month, "themes", inserted)
	return nil
}
