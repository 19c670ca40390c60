package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/yuin/goldmark"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/legaldraftflow/internal/catalog"
	"github.com/Lllllllleong/legaldraftflow/internal/gcp"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

// ObjectWriter stores one object in the delivery bucket.
type ObjectWriter interface {
	Write(ctx context.Context, objectName, contentType, content string) error
}

// WorkflowTrigger starts the downstream workflow and returns the execution name.
type WorkflowTrigger func(ctx context.Context, payload any) (string, error)

// GCSWriter writes objects atomically into a bucket.
type GCSWriter struct {
	bucket *storage.BucketHandle
}

// NewGCSWriter wraps a bucket handle.
func NewGCSWriter(client *storage.Client, bucket string) *GCSWriter {
	return &GCSWriter{bucket: client.Bucket(bucket)}
}

func (w *GCSWriter) Write(ctx context.Context, objectName, contentType, content string) error {
	return gcp.SaveToGCSAtomically(ctx, w.bucket, objectName, contentType, content)
}

// ExecutionsTrigger builds a WorkflowTrigger backed by Cloud Workflows.
func ExecutionsTrigger(client *executions.Client, projectID, location, workflowID string) WorkflowTrigger {
	return func(ctx context.Context, payload any) (string, error) {
		return gcp.TriggerWorkflow(ctx, client, projectID, location, workflowID, payload)
	}
}

// Delivery publishes a completed brief.
type Delivery struct {
	catalog *catalog.Catalog
	writer  ObjectWriter
	bucket  string
	trigger WorkflowTrigger
}

// NewDelivery creates a Delivery. trigger may be nil.
func NewDelivery(cat *catalog.Catalog, writer ObjectWriter, bucket string, trigger WorkflowTrigger) (*Delivery, error) {
	if cat == nil || writer == nil || bucket == "" {
		return nil, errors.New("NewDelivery: catalog, writer and bucket are required")
	}
	return &Delivery{catalog: cat, writer: writer, bucket: bucket, trigger: trigger}, nil
}

// AssembleMarkdown joins section contents in catalog order.
func AssembleMarkdown(cat *catalog.Catalog, contents map[string]string) (string, error) {
	parts := make([]string, 0, cat.Len())
	for _, s := range cat.Sections() {
		text, ok := contents[s.ID]
		if !ok {
			return "", fmt.Errorf("section %q has no content", s.ID)
		}
		parts = append(parts, strings.TrimSpace(text))
	}
	return strings.Join(parts, "\n\n") + "\n", nil
}

// RenderHTML converts Markdown to an HTML fragment.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return buf.String(), nil
}

// Deliver writes the brief as Markdown and HTML and, when configured, starts
// the downstream workflow with the resulting URIs.
func (d *Delivery) Deliver(ctx context.Context, st models.WorkflowState) (*models.DeliveryResponse, error) {
	logCtx := slog.With("sessionId", st.SessionID)
	if st.Phase != models.PhaseCompleted {
		return nil, fmt.Errorf("session %s is not completed (phase %s)", st.SessionID, st.Phase)
	}

	md, err := AssembleMarkdown(d.catalog, st.SectionContents)
	if err != nil {
		return nil, err
	}
	html, err := RenderHTML(md)
	if err != nil {
		return nil, err
	}

	mdObject := fmt.Sprintf("%s/replica.md", st.SessionID)
	htmlObject := fmt.Sprintf("%s/replica.html", st.SessionID)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.writer.Write(gCtx, mdObject, "text/markdown; charset=utf-8", md)
	})
	g.Go(func() error {
		return d.writer.Write(gCtx, htmlObject, "text/html; charset=utf-8", html)
	})
	if err := g.Wait(); err != nil {
		logCtx.Error("Failed to upload brief", "error", err)
		return nil, fmt.Errorf("failed to upload brief: %w", err)
	}

	resp := &models.DeliveryResponse{
		Status:      "success",
		MarkdownURI: fmt.Sprintf("gs://%s/%s", d.bucket, mdObject),
		HTMLURI:     fmt.Sprintf("gs://%s/%s", d.bucket, htmlObject),
	}
	logCtx.Info("Brief uploaded.", "markdownUri", resp.MarkdownURI)

	if d.trigger != nil {
		payload := map[string]string{
			"sessionId":   st.SessionID,
			"markdownUri": resp.MarkdownURI,
			"htmlUri":     resp.HTMLURI,
		}
		execName, err := d.trigger(ctx, payload)
		if err != nil {
			logCtx.Error("Failed to trigger delivery workflow", "error", err)
			return nil, err
		}
		logCtx.Info("Delivery workflow triggered.", "executionName", execName)
	}
	return resp, nil
}
