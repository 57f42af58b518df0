// Package document opens library documents and runs LLM text actions
// (question, rephrase, summarize) against them.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/verbi-app/verbi/internal/api"
	"github.com/verbi-app/verbi/internal/library"
	"github.com/verbi-app/verbi/internal/session"
)

// Action is an LLM text action.
type Action string

// Supported actions. The values are the service's query types.
const (
	ActionQuestion  Action = api.QueryTypeQuestion
	ActionRephrase  Action = api.QueryTypeRephrase
	ActionSummarize Action = api.QueryTypeSummarize
)

// Sentinel errors.
var (
	ErrUnknownAction   = errors.New("document: unknown action")
	ErrEmptyText       = errors.New("document: no text selected")
	ErrMissingQuestion = errors.New("document: question action needs a question")
	ErrNotPDF          = errors.New("document: not a PDF file")
)

// pdfMagic starts every PDF file.
var pdfMagic = []byte("%PDF-")

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionQuestion, ActionRephrase, ActionSummarize:
		return a, nil
	default:
		return "", fmt.Errorf("%w %q (want question, rephrase or summarize)", ErrUnknownAction, s)
	}
}

// Credentials fetches document store credentials.
type Credentials interface {
	FileCredentials(ctx context.Context, userID uint64) (*api.FileCredentials, error)
}

// LLM answers text queries.
type LLM interface {
	Ask(ctx context.Context, q api.LLMRequest) (string, error)
}

// Interactor opens documents and performs text actions.
type Interactor struct {
	creds   Credentials
	llm     LLM
	session *session.Manager
	files   library.Connector
	userID  uint64
	logger  *slog.Logger
}

// NewInteractor creates an Interactor.
func NewInteractor(creds Credentials, llm LLM, mgr *session.Manager, files library.Connector, userID uint64, logger *slog.Logger) *Interactor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Interactor{
		creds:   creds,
		llm:     llm,
		session: mgr,
		files:   files,
		userID:  userID,
		logger:  logger,
	}
}

// LoadDocument downloads the full document into dir and returns its local
// path. The file must be a PDF.
func (i *Interactor) LoadDocument(ctx context.Context, id uint64, title, dir string) (string, error) {
	if title == "" || strings.ContainsAny(title, "/\\") {
		return "", fmt.Errorf("document: invalid title %q", title)
	}

	creds, err := session.Call(ctx, i.session, func(ctx context.Context) (*api.FileCredentials, error) {
		return i.creds.FileCredentials(ctx, i.userID)
	})
	if err != nil {
		return "", fmt.Errorf("fetching file credentials: %w", err)
	}

	conn, err := i.files.Connect(ctx, *creds)
	if err != nil {
		return "", fmt.Errorf("document: connecting to document store: %w", err)
	}
	defer conn.Close()

	remote := RemotePath(i.userID, id, title)

	local, err := library.DownloadTo(ctx, conn, remote, dir, title)
	if err != nil {
		return "", fmt.Errorf("document: downloading %s: %w", remote, err)
	}

	if err := checkPDF(local); err != nil {
		return "", err
	}

	i.logger.Info("document loaded", slog.Uint64("document_id", id), slog.String("path", local))

	return local, nil
}

// PerformAction sends selected text to the LLM. question is the user's
// prompt for ActionQuestion and ignored otherwise; book names the source
// document and may be empty.
func (i *Interactor) PerformAction(ctx context.Context, text string, action Action, question, book string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	if _, err := ParseAction(string(action)); err != nil {
		return "", err
	}

	if action == ActionQuestion && strings.TrimSpace(question) == "" {
		return "", ErrMissingQuestion
	}

	if action != ActionQuestion {
		question = ""
	}

	req := api.LLMRequest{
		Query:     text,
		QueryType: string(action),
		Prompt:    question,
		Book:      book,
	}

	answer, err := session.Call(ctx, i.session, func(ctx context.Context) (string, error) {
		return i.llm.Ask(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", action, err)
	}

	return answer, nil
}

// RemotePath is where the document store keeps a document's file.
func RemotePath(userID, id uint64, title string) string {
	return path.Join("/", strconv.FormatUint(userID, 10), strconv.FormatUint(id, 10), title)
}

func checkPDF(local string) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("document: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return fmt.Errorf("%w: %s", ErrNotPDF, local)
	}

	return nil
}
