package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
)

// DefaultMaxExtractBytes caps the decoded payload size when no limit is configured.
const DefaultMaxExtractBytes = 20 * 1024 * 1024

type FileExtractService struct {
	maxBytes int
}

func NewFileExtractService(maxBytes int64) *FileExtractService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxExtractBytes
	}
	return &FileExtractService{maxBytes: int(maxBytes)}
}

// ExtractDataURI parses a data URI and extracts its text.
func (s *FileExtractService) ExtractDataURI(ctx context.Context, dataURI string) (string, error) {
	blob, err := ParseDataURI(dataURI)
	if err != nil {
		return "", err
	}
	return s.Extract(ctx, blob)
}

// Extract routes blob to the extractor for its format. The format is checked
// before any decoding happens, and no text is returned alongside an error.
func (s *FileExtractService) Extract(ctx context.Context, blob EncodedBlob) (string, error) {
	format, err := ParseFormat(blob.Format())
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if blob.Size() > s.maxBytes {
		return "", &ExtractionError{Format: format, Reason: fmt.Sprintf("payload exceeds %d bytes", s.maxBytes)}
	}

	var text string
	switch format {
	case FormatPlainText:
		// Plain text is returned as decoded, without normalization.
		return extractTXT(blob.payload)
	case FormatPDF:
		text, err = extractPDF(blob.payload)
	case FormatDOCX:
		text, err = extractDOCX(blob.payload)
	}
	if err != nil {
		return "", err
	}

	text = normalizeExtractedText(text)
	if text == "" {
		return "", &ExtractionError{Format: format, Reason: "no extractable text"}
	}
	return text, nil
}

func extractTXT(b []byte) (string, error) {
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(b) {
		return "", &ExtractionError{Format: FormatPlainText, Reason: "content is not valid UTF-8"}
	}
	return string(b), nil
}

func extractPDF(b []byte) (text string, err error) {
	// The decoder panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Format: FormatPDF, Reason: "corrupted document", Err: fmt.Errorf("%v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", &ExtractionError{Format: FormatPDF, Reason: "unreadable or protected document", Err: err}
	}

	var sb strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", &ExtractionError{Format: FormatPDF, Reason: fmt.Sprintf("page %d", pageIndex), Err: err}
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func extractDOCX(b []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Format: FormatDOCX, Reason: "corrupted document", Err: fmt.Errorf("%v", r)}
		}
	}()

	body, _, err := docconv.ConvertDocx(bytes.NewReader(b))
	if err != nil {
		return "", &ExtractionError{Format: FormatDOCX, Reason: "unreadable document", Err: err}
	}
	return body, nil
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}
