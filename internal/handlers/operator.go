package handlers

import (
	"net/http"

	"github.com/skip2/go-qrcode"

	"themedesk/internal/httputil"
	"themedesk/internal/middleware"
)

// TOTPQRCode serves the operator's authenticator enrollment QR code.
// GET /api/operator/totp.png
func TOTPQRCode(auth *middleware.OperatorAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := auth.EnrollmentURL()
		if url == "" {
			httputil.Error(w, http.StatusNotFound, "not_found", "no TOTP secret is configured")
			return
		}
		png, err := qrcode.Encode(url, qrcode.Medium, 256)
		if err != nil {
			httputil.Fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}
