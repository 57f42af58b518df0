// Package library lists, uploads and deletes documents in the user's
// library, downloading previews from the SFTP document store.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/verbi-app/verbi/internal/api"
	"github.com/verbi-app/verbi/internal/session"
)

// Remote and local naming conventions for previews.
const (
	previewName       = "preview.pdf"
	previewFilePrefix = "preview_"
	cachePerms        = 0o700
	defaultWorkers    = 4
)

// ErrEmptyTitle is returned when an upload has no usable file name.
var ErrEmptyTitle = errors.New("library: empty document title")

// API is the subset of the backend client used for documents.
type API interface {
	Documents(ctx context.Context, userID uint64) ([]api.Document, error)
	FileCredentials(ctx context.Context, userID uint64) (*api.FileCredentials, error)
	CreateDocument(ctx context.Context, userID uint64, title string) (*api.CreatedDocument, error)
	DeleteDocument(ctx context.Context, userID, documentID uint64) (string, error)
}

// Conn is an open connection to the document store. Implementations must
// allow concurrent transfers.
type Conn interface {
	Download(ctx context.Context, remotePath string, w io.Writer) (int64, error)
	Upload(ctx context.Context, r io.Reader, remotePath string) (int64, error)
	Close() error
}

// Connector opens document store connections.
type Connector interface {
	Connect(ctx context.Context, creds api.FileCredentials) (Conn, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, creds api.FileCredentials) (Conn, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, creds api.FileCredentials) (Conn, error) {
	return f(ctx, creds)
}

// Entry is a library document with its locally cached preview.
type Entry struct {
	api.Document
	PreviewPath string // empty when the preview could not be fetched
	PreviewErr  error
}

// Options configure an Interactor.
type Options struct {
	UserID         uint64
	CacheDir       string
	PreviewWorkers int
}

// Interactor runs library operations.
type Interactor struct {
	api     API
	session *session.Manager
	files   Connector
	opts    Options
	logger  *slog.Logger
}

// NewInteractor creates an Interactor.
func NewInteractor(client API, mgr *session.Manager, files Connector, opts Options, logger *slog.Logger) *Interactor {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.PreviewWorkers <= 0 {
		opts.PreviewWorkers = defaultWorkers
	}

	return &Interactor{
		api:     client,
		session: mgr,
		files:   files,
		opts:    opts,
		logger:  logger,
	}
}

// LoadDocuments lists the library and downloads every preview into the
// cache directory. An empty library returns without fetching credentials.
// A missing preview is recorded on its entry; connection failures fail the
// whole load.
func (i *Interactor) LoadDocuments(ctx context.Context) ([]Entry, error) {
	docs, err := session.Call(ctx, i.session, func(ctx context.Context) ([]api.Document, error) {
		return i.api.Documents(ctx, i.opts.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	if len(docs) == 0 {
		return []Entry{}, nil
	}

	conn, err := i.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := os.MkdirAll(i.opts.CacheDir, cachePerms); err != nil {
		return nil, fmt.Errorf("library: creating cache dir: %w", err)
	}

	entries := make([]Entry, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.PreviewWorkers)

	for n := range docs {
		entries[n].Document = docs[n]

		g.Go(func() error {
			local := i.PreviewPath(docs[n].ID)
			remote := path.Join(remoteDir(docs[n].Path), previewName)

			if err := downloadFile(gctx, conn, remote, local); err != nil {
				// Cancellation aborts the batch; anything else is per entry.
				if gctx.Err() != nil {
					return gctx.Err()
				}

				i.logger.Warn("preview unavailable",
					slog.Uint64("document_id", docs[n].ID),
					slog.String("error", err.Error()),
				)
				entries[n].PreviewErr = err

				return nil
			}

			entries[n].PreviewPath = local

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("library: downloading previews: %w", err)
	}

	i.logger.Info("library loaded", slog.Int("documents", len(entries)))

	return entries, nil
}

// UploadDocument registers the local file as a new document, uploads it and
// its preview, and returns the reloaded library.
func (i *Interactor) UploadDocument(ctx context.Context, localPath string) ([]Entry, error) {
	title := Title(localPath)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("library: opening %s: %w", localPath, err)
	}
	defer f.Close()

	created, err := session.Call(ctx, i.session, func(ctx context.Context) (*api.CreatedDocument, error) {
		return i.api.CreateDocument(ctx, i.opts.UserID, title)
	})
	if err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}

	conn, err := i.files.Connect(ctx, created.Credentials)
	if err != nil {
		return nil, fmt.Errorf("library: connecting to document store: %w", err)
	}
	defer conn.Close()

	dir := remoteDir(created.Path)

	n, err := conn.Upload(ctx, f, path.Join(dir, title))
	if err != nil {
		return nil, fmt.Errorf("library: uploading %s: %w", title, err)
	}

	// The document doubles as its own preview.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("library: rewinding %s: %w", localPath, err)
	}

	if _, err := conn.Upload(ctx, f, path.Join(dir, previewName)); err != nil {
		return nil, fmt.Errorf("library: uploading preview: %w", err)
	}

	i.logger.Info("uploaded document",
		slog.Uint64("document_id", created.DocumentID),
		slog.String("title", title),
		slog.Int64("bytes", n),
	)

	return i.LoadDocuments(ctx)
}

// DeleteDocument removes a document and its cached preview.
func (i *Interactor) DeleteDocument(ctx context.Context, documentID uint64) (string, error) {
	msg, err := session.Call(ctx, i.session, func(ctx context.Context) (string, error) {
		return i.api.DeleteDocument(ctx, i.opts.UserID, documentID)
	})
	if err != nil {
		return "", fmt.Errorf("deleting document %d: %w", documentID, err)
	}

	if err := os.Remove(i.PreviewPath(documentID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		i.logger.Warn("failed to remove cached preview", slog.String("error", err.Error()))
	}

	return msg, nil
}

// PreviewPath is the local cache path of a document's preview.
func (i *Interactor) PreviewPath(documentID uint64) string {
	return filepath.Join(i.opts.CacheDir, previewFilePrefix+strconv.FormatUint(documentID, 10)+".pdf")
}

func (i *Interactor) connect(ctx context.Context) (Conn, error) {
	creds, err := session.Call(ctx, i.session, func(ctx context.Context) (*api.FileCredentials, error) {
		return i.api.FileCredentials(ctx, i.opts.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching file credentials: %w", err)
	}

	conn, err := i.files.Connect(ctx, *creds)
	if err != nil {
		return nil, fmt.Errorf("library: connecting to document store: %w", err)
	}

	return conn, nil
}

// Title derives a document title from a local file name, NFC-normalized so
// titles from different filesystems compare equal. Names that would resolve
// outside the document directory yield "".
func Title(localPath string) string {
	title := norm.NFC.String(strings.TrimSpace(filepath.Base(localPath)))

	switch {
	case title == "", title == ".", title == "..":
		return ""
	case strings.ContainsAny(title, `/\`):
		return ""
	}

	return title
}

// remoteDir makes a server-provided path absolute.
func remoteDir(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}

	return p
}

// downloadFile fetches remote into local through a temp file so a failed
// transfer never leaves a truncated file behind.
func downloadFile(ctx context.Context, conn Conn, remote, local string) error {
	tmp, err := os.CreateTemp(filepath.Dir(local), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()
	success := false

	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := conn.Download(ctx, remote, tmp); err != nil {
		return err
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, local); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}

	success = true

	return nil
}

// DownloadTo fetches remote into dir/name atomically and returns the local
// path. Exported for the document reader, which shares the convention.
func DownloadTo(ctx context.Context, conn Conn, remote, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, cachePerms); err != nil {
		return "", fmt.Errorf("library: creating %s: %w", dir, err)
	}

	local := filepath.Join(dir, name)
	if err := downloadFile(ctx, conn, remote, local); err != nil {
		return "", err
	}

	return local, nil
}
