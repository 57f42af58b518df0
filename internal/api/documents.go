package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

// Documents lists the user's library.
func (c *Client) Documents(ctx context.Context, userID uint64) ([]Document, error) {
	var dr documentsResponse

	path := "/documents/" + strconv.FormatUint(userID, 10)
	if err := c.doJSON(ctx, &request{method: http.MethodGet, path: path, auth: true}, &dr); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(dr.Documents))
	for i := range dr.Documents {
		docs = append(docs, dr.Documents[i].toDocument())
	}

	c.logger.Debug("listed documents", slog.Uint64("user_id", userID), slog.Int("count", len(docs)))

	return docs, nil
}

// FileCredentials fetches SFTP credentials for the user's document store.
func (c *Client) FileCredentials(ctx context.Context, userID uint64) (*FileCredentials, error) {
	var cr credentialsResponse

	err := c.doJSON(ctx, &request{
		method: http.MethodGet,
		path:   "/documents/credentials",
		query:  url.Values{"userId": {strconv.FormatUint(userID, 10)}},
		auth:   true,
	}, &cr)
	if err != nil {
		return nil, err
	}

	if cr.Host == "" {
		return nil, fmt.Errorf("%w: credentials missing host", ErrInvalidResponse)
	}

	creds := cr.toCredentials()

	return &creds, nil
}

// CreateDocument registers a new document and returns its upload location.
func (c *Client) CreateDocument(ctx context.Context, userID uint64, title string) (*CreatedDocument, error) {
	var cr createDocumentResponse

	err := c.doJSON(ctx, &request{
		method: http.MethodPost,
		path:   "/documents/",
		body: struct {
			UserID uint64 `json:"user_id"`
			Title  string `json:"title"`
		}{userID, title},
		auth: true,
	}, &cr)
	if err != nil {
		return nil, err
	}

	if cr.Path == "" {
		return nil, fmt.Errorf("%w: created document missing path", ErrInvalidResponse)
	}

	c.logger.Info("created document", slog.Uint64("document_id", cr.DocumentID), slog.String("title", cr.Title))

	return &CreatedDocument{
		DocumentID:  cr.DocumentID,
		Title:       cr.Title,
		Path:        cr.Path,
		Credentials: cr.SFTP.toCredentials(),
	}, nil
}

// DeleteDocument removes a document from the user's library.
func (c *Client) DeleteDocument(ctx context.Context, userID, documentID uint64) (string, error) {
	return c.message(ctx, &request{
		method: http.MethodDelete,
		path:   "/documents/" + strconv.FormatUint(userID, 10),
		query:  url.Values{"documentId": {strconv.FormatUint(documentID, 10)}},
		auth:   true,
	})
}
