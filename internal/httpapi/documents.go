package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/middleware"
)

type documentView struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Analysis    string    `json:"analysis"`
	CreatedAt   time.Time `json:"created_at"`
}

// handleScan reads the multipart "document" field. Size and type are enforced
// by the engine; the body cap here only bounds what is buffered.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	limit := s.engine.Config().Documents.MaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	file, header, err := r.FormFile("document")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, docgate.ErrDocumentTooLarge)
			return
		}
		middleware.WriteError(w, fmt.Errorf("%w: document field required", docgate.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		middleware.WriteError(w, fmt.Errorf("%w: %v", docgate.ErrInvalidInput, err))
		return
	}

	id, _ := middleware.IdentityFromContext(r.Context())
	res, err := s.engine.Scan(r.Context(), id.User.ID, docgate.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	d := res.Document
	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"document": documentView{
			ID:          d.ID,
			Filename:    d.Filename,
			ContentType: d.ContentType,
			Size:        d.Size,
			Analysis:    d.Analysis,
			CreatedAt:   d.CreatedAt,
		},
		"remaining_credits": res.RemainingCredits,
	})
}
