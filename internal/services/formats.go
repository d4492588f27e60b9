package services

import (
	"net/http"
	"path/filepath"
	"strings"

	"studyai-backend/internal/models"
)

// Format is one of the fixed set of document types the extractor accepts.
type Format string

const (
	FormatPlainText Format = "text/plain"
	FormatPDF       Format = "application/pdf"
	FormatDOCX      Format = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var supportedFormats = []models.SupportedFormat{
	{Extension: ".txt", MimeType: string(FormatPlainText), Description: "Plain Text"},
	{Extension: ".pdf", MimeType: string(FormatPDF), Description: "PDF Document"},
	{Extension: ".docx", MimeType: string(FormatDOCX), Description: "Word Document"},
}

func SupportedFormats() []models.SupportedFormat {
	out := make([]models.SupportedFormat, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// ParseFormat maps a format tag to a Format. Parameters ("; charset=utf-8")
// and case are ignored.
func ParseFormat(tag string) (Format, error) {
	t := tag
	if i := strings.Index(t, ";"); i >= 0 {
		t = t[:i]
	}
	t = strings.ToLower(strings.TrimSpace(t))

	switch Format(t) {
	case FormatPlainText, FormatPDF, FormatDOCX:
		return Format(t), nil
	default:
		return "", &UnsupportedFormatError{Tag: tag}
	}
}

// FormatFromFilename classifies an upload by extension first, falling back to
// content sniffing of the leading bytes.
func FormatFromFilename(filename string, head []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return FormatPlainText, nil
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	}

	sniffed := http.DetectContentType(head)
	if f, err := ParseFormat(sniffed); err == nil {
		return f, nil
	}
	return "", &UnsupportedFormatError{Tag: sniffed}
}
