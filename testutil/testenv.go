// Package testutil provides shared environment helpers for end-to-end tests
// against a live Verbi backend. It lives outside internal/ so the e2e
// package, which drives the built binary, can import it.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by the e2e suite.
const (
	EnvBaseURL         = "VERBI_E2E_BASE_URL"
	EnvDocumentsURL    = "VERBI_E2E_DOCUMENTS_URL"
	EnvLLMURL          = "VERBI_E2E_LLM_URL"
	EnvUser            = "VERBI_E2E_USER"
	EnvPassword        = "VERBI_E2E_PASSWORD"
	EnvUserID          = "VERBI_E2E_USER_ID"
	EnvAllowedAccounts = "VERBI_ALLOWED_TEST_ACCOUNTS"
)

// LoadDotEnv loads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly). Variables
// already in the environment take precedence.
func LoadDotEnv(envPath string) {
	_ = godotenv.Load(envPath)
}

// MustEnv returns the named variables, exiting the process if any is unset.
func MustEnv(keys ...string) map[string]string {
	vals := make(map[string]string, len(keys))

	var missing []string

	for _, k := range keys {
		v := os.Getenv(k)
		if v == "" {
			missing = append(missing, k)
		}

		vals[k] = v
	}

	if len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "FATAL: missing environment: %s\n", strings.Join(missing, ", "))
		fmt.Fprintln(os.Stderr, "Set them in .env or as environment variables.")
		os.Exit(1)
	}

	return vals
}

// ValidateAllowlist exits the process unless the test account is listed in
// VERBI_ALLOWED_TEST_ACCOUNTS. The suite uploads and deletes documents, so
// it must never run against a real user's library.
func ValidateAllowlist(account string) {
	allowlist := os.Getenv(EnvAllowedAccounts)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvAllowedAccounts)
		fmt.Fprintf(os.Stderr, "Example: %s=e2e-bot,e2e-bot@example.com\n", EnvAllowedAccounts)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == account {
			return
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n", EnvUser, account, EnvAllowedAccounts, allowlist)
	os.Exit(1)
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// MinimalPDF returns a tiny valid PDF whose page shows text.
func MinimalPDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var b strings.Builder

	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)

	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}

	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return []byte(b.String())
}
