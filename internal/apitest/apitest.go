// Package apitest provides an in-process fake of the Verbi backend for
// tests. One httptest server hosts the auth, profile, documents and LLM
// routes under /api/v1, with a single user account and real bearer-token
// checks, so clients exercise the full 401 -> refresh -> retry protocol.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/verbi-app/verbi/internal/api"
)

// Default account served by a new Server.
const (
	Username = "anna"
	Email    = "anna@example.com"
	Password = "correct horse"
	UserID   = 1
)

// Server is a fake Verbi backend.
type Server struct {
	srv *httptest.Server

	mu           sync.Mutex
	username     string
	email        string
	password     string
	access       string // currently valid access token ("" = none)
	refresh      string // currently valid refresh token ("" = none)
	seq          int
	failRefresh  bool
	hold         chan struct{}
	refreshCalls int
	hits         map[string]int
	docs         []api.Document
	nextDocID    uint64
	creds        api.FileCredentials
	answer       string
	lastLLM      api.LLMRequest
	deleted      bool
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		username:  Username,
		email:     Email,
		password:  Password,
		hits:      make(map[string]int),
		nextDocID: 1,
		creds:     api.FileCredentials{Username: "sftp-user", Password: "sftp-pass", Host: "files.test", Port: "22"},
		answer:    "fake answer",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("GET /api/v1/auth/email", s.handleMessage("email confirmed"))
	mux.HandleFunc("GET /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/logout/", s.handleLogout)
	mux.HandleFunc("GET /api/v1/auth/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/v1/auth/password", s.handleMessage("reset code sent"))
	mux.HandleFunc("PUT /api/v1/auth/password", s.handleConfirmReset)
	mux.HandleFunc("GET /api/v1/auth/code", s.handleMessage("code resent"))
	mux.HandleFunc("GET /api/v1/profile/", s.authorized(s.handleProfile))
	mux.HandleFunc("PUT /api/v1/profile/", s.authorized(s.handleRename))
	mux.HandleFunc("DELETE /api/v1/profile/", s.authorized(s.handleDeleteAccount))
	mux.HandleFunc("GET /api/v1/documents/credentials", s.authorized(s.handleCredentials))
	mux.HandleFunc("GET /api/v1/documents/{userId}", s.authorized(s.handleDocuments))
	mux.HandleFunc("DELETE /api/v1/documents/{userId}", s.authorized(s.handleDeleteDocument))
	mux.HandleFunc("POST /api/v1/documents/", s.authorized(s.handleCreateDocument))
	mux.HandleFunc("POST /api/v1/llm/response", s.authorized(s.handleLLM))

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api/v1")]++
		s.mu.Unlock()

		mux.ServeHTTP(w, r)
	}))

	// Cleanups run LIFO: release a held refresh before closing the server.
	t.Cleanup(s.srv.Close)
	t.Cleanup(s.releaseHold)

	return s
}

// BaseURL is the service base URL including the /api/v1 prefix.
func (s *Server) BaseURL() string {
	return s.srv.URL + "/api/v1"
}

// SignIn issues a token pair as if the user had logged in.
func (s *Server) SignIn() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = s.issue("access")
	s.refresh = s.issue("refresh")

	return s.access, s.refresh
}

// ExpireAccess invalidates the current access token. The refresh token
// stays valid.
func (s *Server) ExpireAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
}

// RevokeRefresh invalidates the refresh token, so the next refresh fails.
func (s *Server) RevokeRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh = ""
}

// FailRefresh makes every refresh return 500.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failRefresh = fail
}

// HoldRefresh blocks refresh requests until the returned func is called.
func (s *Server) HoldRefresh() (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hold = make(chan struct{})

	return s.releaseHold
}

func (s *Server) releaseHold() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hold != nil {
		close(s.hold)
		s.hold = nil
	}
}

// AccessToken returns the currently valid access token.
func (s *Server) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.access
}

// RefreshCalls returns how many refresh requests reached the server.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.refreshCalls
}

// Hits returns how many requests hit "METHOD /path" (path without /api/v1).
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hits[route]
}

// AddDocument adds a document to the library and returns it.
func (s *Server) AddDocument(title string) api.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addDocument(title)
}

// Documents returns the library contents.
func (s *Server) Documents() []api.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]api.Document(nil), s.docs...)
}

// Credentials returns the SFTP credentials the server hands out.
func (s *Server) Credentials() api.FileCredentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.creds
}

// SetAnswer sets the LLM response text.
func (s *Server) SetAnswer(answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answer = answer
}

// LastLLMRequest returns the most recent LLM query.
func (s *Server) LastLLMRequest() api.LLMRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastLLM
}

// Username returns the current account username.
func (s *Server) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.username
}

// AccountDeleted reports whether the account was deleted.
func (s *Server) AccountDeleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleted
}

// Caller must hold mu.
func (s *Server) issue(kind string) string {
	s.seq++
	return kind + "-" + strconv.Itoa(s.seq)
}

// Caller must hold mu.
func (s *Server) addDocument(title string) api.Document {
	id := s.nextDocID
	s.nextDocID++

	d := api.Document{
		ID:     id,
		UserID: UserID,
		Title:  title,
		Path:   fmt.Sprintf("/%d/%d", UserID, id),
	}
	s.docs = append(s.docs, d)

	return d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// authorized rejects requests without the currently valid bearer token.
func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

		s.mu.Lock()
		valid := ok && s.access != "" && tok == s.access && !s.deleted
		s.mu.Unlock()

		if !valid {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next(w, r)
	}
}

func (s *Server) handleMessage(msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "" {
			writeError(w, http.StatusBadRequest, "email is required")
			return
		}

		writeMessage(w, msg)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	taken := req.Username == s.username || req.Email == s.email
	s.mu.Unlock()

	if taken {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}

	writeMessage(w, "confirmation code sent to "+req.Email)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	who := r.URL.Query().Get("emailOrUsername")
	pw := r.Header.Get("Password")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted || (who != s.username && who != s.email) || pw != s.password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.access = s.issue("access")
	s.refresh = s.issue("refresh")

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  s.access,
		"refresh_token": s.refresh,
		"expires_in":    "900",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refresh == "" || r.Header.Get("Refresh-Token") != s.refresh {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	s.access, s.refresh = "", ""
	writeMessage(w, "logged out")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.refreshCalls++
	hold := s.hold
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRefresh {
		writeError(w, http.StatusInternalServerError, "refresh unavailable")
		return
	}

	if s.refresh == "" || r.Header.Get("Refresh-Token") != s.refresh {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	s.access = s.issue("access")
	writeJSON(w, http.StatusOK, map[string]string{"access_token": s.access})
}

func (s *Server) handleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		NewPassword string `json:"new_password"`
		Code        string `json:"code"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	s.password = req.NewPassword
	s.mu.Unlock()

	writeMessage(w, "password changed")
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"username": s.username, "email": s.email})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewUsername string `json:"new_username"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewUsername == "" {
		writeError(w, http.StatusBadRequest, "new_username is required")
		return
	}

	s.mu.Lock()
	s.username = req.NewUsername
	s.mu.Unlock()

	writeMessage(w, "username changed")
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.deleted = true
	s.access, s.refresh = "", ""
	s.mu.Unlock()

	writeMessage(w, "account deleted")
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("userId") != strconv.Itoa(UserID) {
		writeJSON(w, http.StatusOK, map[string]any{"documents": []any{}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]map[string]any, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, map[string]any{"id": d.ID, "user_id": d.UserID, "title": d.Title, "path": d.Path})
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("documentId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, d := range s.docs {
		if d.ID == id {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			writeMessage(w, "Document successfully deleted")

			return
		}
	}

	writeError(w, http.StatusInternalServerError, "record not found")
}

func (s *Server) credsJSON() map[string]string {
	return map[string]string{
		"username": s.creds.Username,
		"password": s.creds.Password,
		"host":     s.creds.Host,
		"port":     s.creds.Port,
	}
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("userId") == "" {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, s.credsJSON())
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uint64 `json:"user_id"`
		Title  string `json:"title"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.addDocument(req.Title)

	writeJSON(w, http.StatusCreated, map[string]any{
		"document_id": d.ID,
		"title":       d.Title,
		"path":        d.Path,
		"sftp":        s.credsJSON(),
	})
}

func (s *Server) handleLLM(w http.ResponseWriter, r *http.Request) {
	var req api.LLMRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastLLM = req
	writeJSON(w, http.StatusOK, map[string]string{"response": s.answer})
}
