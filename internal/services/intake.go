package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/legaldraftflow/internal/gcp"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

// maxIntakeBytes is the largest extracted-text document accepted from the upload bucket.
const maxIntakeBytes = MaxDocumentBytes

// GCSEvent is the payload of a Cloud Storage object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// ObjectReader fetches an uploaded object and its content type.
type ObjectReader interface {
	Read(ctx context.Context, bucket, object string) ([]byte, string, error)
}

// GCSReader reads objects with a size cap.
type GCSReader struct {
	client *storage.Client
}

// NewGCSReader wraps a storage client.
func NewGCSReader(client *storage.Client) *GCSReader {
	return &GCSReader{client: client}
}

func (r *GCSReader) Read(ctx context.Context, bucket, object string) ([]byte, string, error) {
	data, attrs, err := gcp.ReadObject(ctx, r.client, bucket, object, maxIntakeBytes)
	if err != nil {
		return nil, "", err
	}
	return data, attrs.ContentType, nil
}

// IntakeFunction turns uploaded text files into document submissions.
type IntakeFunction struct {
	sessions *SessionService
	reader   ObjectReader
}

// NewIntake creates an IntakeFunction.
func NewIntake(sessions *SessionService, reader ObjectReader) (*IntakeFunction, error) {
	if sessions == nil || reader == nil {
		return nil, errors.New("NewIntake: sessions and reader are required")
	}
	return &IntakeFunction{sessions: sessions, reader: reader}, nil
}

// ParseIntakeObject splits an object name of the form "<sessionId>/<file>".
func ParseIntakeObject(name string) (sessionID, fileName string, err error) {
	sessionID, fileName, ok := strings.Cut(name, "/")
	if !ok || sessionID == "" || fileName == "" || strings.HasSuffix(fileName, "/") {
		return "", "", fmt.Errorf("object %q is not of the form <sessionId>/<file>", name)
	}
	return sessionID, path.Base(fileName), nil
}

// isTextContent reports whether an upload can be used as extracted text.
func isTextContent(contentType, fileName string) bool {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil && (strings.HasPrefix(mediaType, "text/") || mediaType == "application/json") {
			return true
		}
	}
	switch strings.ToLower(path.Ext(fileName)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// Process submits one uploaded document to its session. Malformed, oversized
// or non-text uploads are logged and dropped so the event is not retried.
func (f *IntakeFunction) Process(ctx context.Context, e GCSEvent) (*models.SessionEventResponse, error) {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing uploaded document.")

	sessionID, fileName, err := ParseIntakeObject(e.Name)
	if err != nil {
		logCtx.Warn("Ignoring upload", "error", err)
		return nil, nil
	}

	data, contentType, err := f.reader.Read(ctx, e.Bucket, e.Name)
	if errors.Is(err, gcp.ErrObjectTooLarge) {
		logCtx.Warn("Ignoring oversized upload", "error", err)
		return nil, nil
	}
	if err != nil {
		logCtx.Error("Failed to read uploaded document", "error", err)
		return nil, err
	}
	if !isTextContent(contentType, fileName) {
		logCtx.Warn("Ignoring non-text upload", "contentType", contentType)
		return nil, nil
	}

	res, err := f.sessions.Handle(ctx, &models.SessionEventRequest{
		SessionID: sessionID,
		Action:    models.ActionDocuments,
		Documents: []models.Document{{
			Name:     fileName,
			Content:  string(data),
			FileType: contentType,
		}},
	})
	if errors.Is(err, ErrSessionNotFound) {
		logCtx.Warn("Ignoring upload for unknown session", "sessionId", sessionID)
		return nil, nil
	}
	if errors.Is(err, ErrDocumentTooLarge) {
		logCtx.Warn("Ignoring oversized upload", "sessionId", sessionID, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logCtx.Info("Document submitted.", "sessionId", sessionID, "phase", res.Phase)
	return res, nil
}
