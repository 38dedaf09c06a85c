package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgallion1/pdfrag/internal/export"
	"github.com/dgallion1/pdfrag/internal/store"
)

// handleListDocuments lists stored documents without their sections or chunks.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.orchestrator.Store().List(r.Context())
	if err != nil {
		s.storeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// loadDocument fetches the record named in the URL, answering 404 itself.
func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) (store.Record, bool) {
	rec, err := s.orchestrator.Store().Get(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.storeError(w, "get document", err)
		return store.Record{}, false
	}
	return rec, true
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetSections(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": rec.DocID, "sections": rec.Sections})
}

func (s *Server) handleGetChunks(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": rec.DocID, "mode": rec.Mode, "chunks": rec.Chunks})
}

// handleGetOutline returns the section outline as json (default), yaml or md.
func (s *Server) handleGetOutline(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "yaml" && format != "md" {
		jsonError(w, "format must be json, yaml or md", http.StatusBadRequest)
		return
	}

	rec, ok := s.loadDocument(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	switch format {
	case "json":
		if err := export.WriteJSON(&buf, rec.Sections); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
	case "yaml":
		if err := export.WriteYAML(&buf, rec.Sections); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
	case "md":
		buf.WriteString(export.OutlineMarkdown(rec.Sections))
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.Write(buf.Bytes())
}

// handlePreview renders the stored markdown as a standalone HTML page.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	body, err := export.RenderHTML(rec.Markdown)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(export.PreviewPage(rec.Title, body)))
}

// handleDeleteDocument deletes a document with its sections and chunks.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.orchestrator.Store().Delete(r.Context(), docID); err != nil {
		s.storeError(w, "delete document", err)
		return
	}
	s.log.Info("document deleted", zap.String("doc_id", docID))
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "document not found", http.StatusNotFound)
	case store.IsRetryable(err):
		s.log.Warn(op+" failed", zap.Error(err))
		jsonError(w, "store unavailable: "+err.Error(), http.StatusServiceUnavailable)
	default:
		s.log.Error(op+" failed", zap.Error(err))
		jsonError(w, op+": "+err.Error(), http.StatusInternalServerError)
	}
}
