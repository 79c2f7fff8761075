// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"themedesk/internal/httputil"
)

const operatorKey contextKey = "operator"

// OTPHeader carries the operator's current TOTP code.
const OTPHeader = "X-OTP"

// TOTPIssuer labels the account in authenticator apps.
const TOTPIssuer = "themedesk"

// OperatorAuth guards the API for the single operator: HTTP Basic auth
// checked against a bcrypt hash, plus a TOTP code when a secret is set.
type OperatorAuth struct {
	user       string
	hash       []byte
	totpSecret string
	now        func() time.Time
}

// NewOperatorAuth creates the guard. An empty hash disables authentication,
// which config only allows outside production.
func NewOperatorAuth(user, passwordHash, totpSecret string) *OperatorAuth {
	if passwordHash == "" {
		slog.Warn("operator authentication disabled: no password hash configured")
	}
	return &OperatorAuth{
		user:       user,
		hash:       []byte(passwordHash),
		totpSecret: totpSecret,
		now:        time.Now,
	}
}

// Middleware rejects requests without valid operator credentials and
// records the operator name in the request context.
func (a *OperatorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.hash) == 0 {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey, a.user)))
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) != 1 ||
			bcrypt.CompareHashAndPassword(a.hash, []byte(pass)) != nil {
			slog.Warn("operator authentication failed", "user", user, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="themedesk", charset="UTF-8"`)
			httputil.Error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}

		if a.totpSecret != "" && !a.validOTP(r.Header.Get(OTPHeader)) {
			slog.Warn("operator otp rejected", "user", user, "remote", r.RemoteAddr)
			httputil.Error(w, http.StatusUnauthorized, "otp_required", "a valid one-time code is required in the "+OTPHeader+" header")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey, user)))
	})
}

func (a *OperatorAuth) validOTP(code string) bool {
	if code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, a.totpSecret, a.now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// TOTPEnabled reports whether a second factor is configured.
func (a *OperatorAuth) TOTPEnabled() bool {
	return a.totpSecret != ""
}

// EnrollmentURL returns the otpauth:// URL for the configured secret, or
// "" when none is set.
func (a *OperatorAuth) EnrollmentURL() string {
	if a.totpSecret == "" {
		return ""
	}
	return EnrollmentURL(a.user, a.totpSecret)
}

// EnrollmentURL builds an otpauth:// URL for an authenticator app.
func EnrollmentURL(account, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", TOTPIssuer)
	return fmt.Sprintf("otpauth://totp/%s:%s?%s", TOTPIssuer, url.PathEscape(account), v.Encode())
}

// Operator returns the authenticated operator's name, or "" outside an
// authenticated request.
func Operator(ctx context.Context) string {
	name, _ := ctx.Value(operatorKey).(string)
	return name
}
