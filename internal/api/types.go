package api

import (
	"fmt"
	"strconv"
	"strings"
)

// LoginResult is the credential pair issued by a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds; zero if the server did not say
}

// UserInfo is the authenticated user's profile.
type UserInfo struct {
	Username string
	Email    string
}

// Document is a library entry.
type Document struct {
	ID     uint64
	UserID uint64
	Title  string
	Path   string // remote directory holding the file and its preview
}

// FileCredentials are short-lived SFTP credentials for the document store.
// Password is a secret; NEVER log it.
type FileCredentials struct {
	Username string
	Password string
	Host     string
	Port     string
}

// CreatedDocument is the result of registering a new document: where to
// upload it and with which credentials.
type CreatedDocument struct {
	DocumentID  uint64
	Title       string
	Path        string
	Credentials FileCredentials
}

// Wire types. Unexported: callers only see the normalized types above.

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    seconds `json:"expires_in"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

type userInfoResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type documentResponse struct {
	ID     uint64 `json:"id"`
	UserID uint64 `json:"user_id"`
	Title  string `json:"title"`
	Path   string `json:"path"`
}

type documentsResponse struct {
	Documents []documentResponse `json:"documents"`
}

type credentialsResponse struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     string `json:"port"`
}

type createDocumentResponse struct {
	DocumentID uint64              `json:"document_id"`
	Title      string              `json:"title"`
	Path       string              `json:"path"`
	SFTP       credentialsResponse `json:"sftp"`
}

func (c credentialsResponse) toCredentials() FileCredentials {
	return FileCredentials(c)
}

func (d documentResponse) toDocument() Document {
	return Document(d)
}

// seconds decodes expires_in, which the auth service sends as a string and
// other deployments send as a number.
type seconds int

func (s *seconds) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("api: invalid expires_in %q", raw)
	}

	*s = seconds(f)

	return nil
}
