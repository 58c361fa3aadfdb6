package docgate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PDFPlaceholder stands in for PDF text, which is not extracted.
const PDFPlaceholder = "PDF document uploaded. Text extraction is not available for this format."

// Upload is a document submitted for scanning.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ScanResult is a stored, analyzed document and the balance left after it.
type ScanResult struct {
	Document         *Document
	RemainingCredits int
}

// Scan analyzes up for userID and charges one credit. The credit is consumed
// only after the analysis is stored. An analyzer failure is ErrAnalysisFailed
// and a store failure is ErrStoreUnavailable; neither touches the balance.
func (e *Engine) Scan(ctx context.Context, userID string, up Upload) (*ScanResult, error) {
	if int64(len(up.Data)) > e.config.Documents.MaxBytes {
		return nil, ErrDocumentTooLarge
	}
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidInput)
	}

	text, contentType, err := e.extractText(up)
	if err != nil {
		return nil, err
	}

	if _, err := e.CheckCredits(ctx, userID); err != nil {
		return nil, err
	}

	if e.analyzer == nil {
		return nil, ErrAnalyzerUnavailable
	}
	analysis, err := e.analyzer.Analyze(ctx, text)
	if err != nil {
		e.metrics.Inc(MetricAnalysisFailed)
		e.log.Warn("document analysis failed", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	doc := &Document{
		ID:          uuid.NewString(),
		UserID:      userID,
		Filename:    filepath.Base(up.Filename),
		ContentType: contentType,
		Size:        int64(len(up.Data)),
		Content:     text,
		Analysis:    analysis,
		CreatedAt:   e.now(),
	}
	if err := e.store.SaveDocument(ctx, doc); err != nil {
		e.log.Error("analyzed document not stored", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Charged only once the document is persisted.
	left, err := e.ConsumeCredit(ctx, userID)
	if err != nil {
		e.log.Warn("stored document not charged", zap.String("user_id", userID), zap.String("document_id", doc.ID), zap.Error(err))
		return nil, err
	}
	if err := e.store.IncrementScans(ctx, userID); err != nil {
		e.log.Warn("scan counter not incremented", zap.String("user_id", userID), zap.Error(err))
	}

	e.metrics.Inc(MetricDocumentScanned)
	e.record(ctx, userID, ActionDocumentUpload, map[string]string{"document_id": doc.ID, "filename": doc.Filename})
	e.record(ctx, userID, ActionCreditUse, map[string]string{"document_id": doc.ID, "remaining": fmt.Sprint(left)})
	return &ScanResult{Document: doc, RemainingCredits: left}, nil
}

func (e *Engine) extractText(up Upload) (string, string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(up.ContentType, ";", 2)[0]))
	ext := strings.ToLower(filepath.Ext(up.Filename))

	switch {
	case ct == "application/pdf" || ext == ".pdf":
		return PDFPlaceholder, "application/pdf", nil
	case strings.HasPrefix(ct, "text/") || ext == ".txt" || ext == ".md":
		if !utf8.Valid(up.Data) {
			return "", "", errors.Join(ErrUnsupportedDocument, errors.New("text is not valid UTF-8"))
		}
		text := NormalizeText(string(up.Data), e.config.Documents.MaxTextChars)
		if text == "" {
			return "", "", fmt.Errorf("%w: document has no text", ErrInvalidInput)
		}
		return text, "text/plain", nil
	}
	return "", "", ErrUnsupportedDocument
}

// NormalizeText collapses whitespace runs to single spaces and truncates to
// max characters.
func NormalizeText(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max > 0 && utf8.RuneCountInString(s) > max {
		r := []rune(s)
		s = string(r[:max])
	}
	return s
}
