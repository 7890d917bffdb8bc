// Package auth builds the authenticated Google Sheets service from a
// service-account credential. The credential JSON comes from the
// GOOGLE_CREDENTIALS_JSON environment variable or from a secret file,
// matching how the batch scheduler injects it.
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	// CredentialsEnv holds the service-account JSON verbatim.
	CredentialsEnv = "GOOGLE_CREDENTIALS_JSON"

	// CredentialsFileEnv points at a file holding the JSON, for
	// platforms that mount secrets instead of exporting them.
	CredentialsFileEnv = "GOOGLE_CREDENTIALS_FILE"
)

var scopes = []string{
	sheets.SpreadsheetsScope,
	sheets.DriveScope,
}

// LoadCredentials reads the service-account JSON from the environment,
// preferring the inline variable over the file path. Escaped newlines in
// the private key are unescaped; secret stores flatten them routinely.
func LoadCredentials() ([]byte, error) {
	if raw := os.Getenv(CredentialsEnv); raw != "" {
		return []byte(strings.ReplaceAll(raw, `\n`, "\n")), nil
	}
	if path := os.Getenv(CredentialsFileEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
		}
		return []byte(strings.ReplaceAll(string(data), `\n`, "\n")), nil
	}
	return nil, fmt.Errorf("neither %s nor %s is set", CredentialsEnv, CredentialsFileEnv)
}

// GetSheetsService creates an authenticated Sheets service from the
// environment-supplied service-account credential.
func GetSheetsService(ctx context.Context) (*sheets.Service, error) {
	data, err := LoadCredentials()
	if err != nil {
		return nil, err
	}

	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Sheets service: %w", err)
	}
	return srv, nil
}
