package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mhalvors/docchat/internal/document"
)

// documentUploadRequest is the JSON form of a document upload.
type documentUploadRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// UploadDocument stores a text document. Accepts either a multipart
// form with a "file" part or a JSON body with filename and content.
// POST /v1/documents
func (h *Handler) UploadDocument(c echo.Context) error {
	filename, content, err := readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	doc, err := h.docs.Save(filename, content)
	if err != nil {
		log.Printf("WARN: rejected document upload %q: %v", filename, err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, doc)
}

func readUpload(c echo.Context) (filename, content string, err error) {
	if file, ferr := c.FormFile("file"); ferr == nil {
		src, oerr := file.Open()
		if oerr != nil {
			return "", "", errors.New("failed to open uploaded file")
		}
		defer src.Close()
		data, rerr := io.ReadAll(io.LimitReader(src, document.MaxDocumentBytes+1))
		if rerr != nil {
			return "", "", errors.New("failed to read uploaded file")
		}
		return file.Filename, string(data), nil
	}

	var req documentUploadRequest
	if berr := c.Bind(&req); berr != nil {
		return "", "", errors.New("invalid request body")
	}
	if req.Filename == "" {
		return "", "", errors.New("filename is required")
	}
	return req.Filename, req.Content, nil
}

// ListDocuments lists uploaded documents, newest first.
// GET /v1/documents
func (h *Handler) ListDocuments(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"documents": h.docs.List(),
	})
}

// GetDocument returns one document's metadata and content.
// GET /v1/documents/:document_id
func (h *Handler) GetDocument(c echo.Context) error {
	doc, err := h.docs.Get(c.Param("document_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "document not found"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":          doc.ID,
		"filename":    doc.Filename,
		"char_count":  doc.CharCount,
		"uploaded_at": doc.UploadedAt,
		"content":     doc.Content,
	})
}

// DeleteDocument removes an uploaded document.
// DELETE /v1/documents/:document_id
func (h *Handler) DeleteDocument(c echo.Context) error {
	documentID := c.Param("document_id")
	if err := h.docs.Delete(documentID); err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "document not found"})
		}
		log.Printf("ERROR: failed to delete document %s: %v", documentID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete document"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
