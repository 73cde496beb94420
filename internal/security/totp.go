package security

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

const totpIssuer = "Device Galaxy"

// NewTOTPSecret creates a secret for accountName and returns it with the
// otpauth:// provisioning URI shown as a QR code.
func NewTOTPSecret(accountName string) (secret string, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

func ValidateTOTP(code string, secret string) bool {
	return totp.Validate(code, secret)
}

// TOTPCode is exposed for tests and tooling.
func TOTPCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCode(secret, at)
}
