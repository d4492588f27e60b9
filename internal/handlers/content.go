package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"studyai-backend/internal/logger"
	"studyai-backend/internal/models"
	"studyai-backend/internal/services"
)

type textExtractor interface {
	Extract(ctx context.Context, blob services.EncodedBlob) (string, error)
}

type ContentHandler struct {
	extractor      textExtractor
	maxUploadBytes int64
	log            *logger.Logger
}

func NewContentHandler(extractor textExtractor, maxUploadBytes int64, log *logger.Logger) *ContentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = services.DefaultMaxExtractBytes
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ContentHandler{extractor: extractor, maxUploadBytes: maxUploadBytes, log: log}
}

func (h *ContentHandler) SupportedFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"formats": services.SupportedFormats(),
	})
}

// Extract accepts either {"file_data_uri": "data:<mime>;base64,..."} or a
// multipart form with a "file" part.
func (h *ContentHandler) Extract(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var blob services.EncodedBlob
	if mediaType == "multipart/form-data" {
		b, ok := h.readMultipart(w, r)
		if !ok {
			return
		}
		blob = b
	} else {
		var req models.ExtractTextRequest
		// base64 inflates the payload by 4/3
		if !decodeJSONBody(w, r, h.maxUploadBytes/3*4+4096, &req) {
			return
		}
		if strings.TrimSpace(req.FileDataURI) == "" {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{
				"file_data_uri": "file_data_uri is required",
			}, r))
			return
		}

		b, err := services.ParseDataURI(req.FileDataURI)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		blob = b
	}

	text, err := h.extractor.Extract(r.Context(), blob)
	if err != nil {
		h.log.Warn("extraction failed", "format", blob.Format(), "bytes", blob.Size(), "error", err)
		handleServiceError(w, r, err)
		return
	}

	h.log.Info("text extracted", "format", blob.Format(), "bytes", blob.Size(), "chars", len(text))
	writeJSON(w, http.StatusOK, models.ExtractTextResponse{Text: text, Format: blob.Format()})
}

func (h *ContentHandler) readMultipart(w http.ResponseWriter, r *http.Request) (services.EncodedBlob, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handleServiceError(w, r, err)
		} else {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid multipart form", r))
		}
		return services.EncodedBlob{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{
			"file": "file is required",
		}, r))
		return services.EncodedBlob{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Failed to read uploaded file", r))
		return services.EncodedBlob{}, false
	}

	// An explicit "format" field wins over the filename.
	tag := r.FormValue("format")
	if tag == "" {
		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		format, err := services.FormatFromFilename(header.Filename, head)
		if err != nil {
			handleServiceError(w, r, err)
			return services.EncodedBlob{}, false
		}
		tag = string(format)
	}

	return services.NewEncodedBlob(tag, data), true
}
