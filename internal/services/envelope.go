package services

import (
	"encoding/base64"
	"strings"
)

// EncodedBlob is an uploaded document: a format tag plus its raw bytes.
// It is immutable once constructed.
type EncodedBlob struct {
	format  string
	payload []byte
}

func NewEncodedBlob(format string, payload []byte) EncodedBlob {
	p := make([]byte, len(payload))
	copy(p, payload)
	return EncodedBlob{format: format, payload: p}
}

func (b EncodedBlob) Format() string { return b.format }

// Payload returns a copy of the raw bytes.
func (b EncodedBlob) Payload() []byte {
	p := make([]byte, len(b.payload))
	copy(p, b.payload)
	return p
}

func (b EncodedBlob) Size() int { return len(b.payload) }

// ParseDataURI decodes "data:<mime>[;param...];base64,<body>".
func ParseDataURI(s string) (EncodedBlob, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return EncodedBlob{}, malformedf("missing data: prefix")
	}

	header, body, ok := strings.Cut(rest, ",")
	if !ok {
		return EncodedBlob{}, malformedf("missing ',' between header and body")
	}

	params := strings.Split(header, ";")
	mime := strings.ToLower(strings.TrimSpace(params[0]))
	if mime == "" {
		return EncodedBlob{}, malformedf("missing format tag")
	}

	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
			break
		}
	}
	if !isBase64 {
		return EncodedBlob{}, malformedf("payload is not base64 encoded")
	}

	body = strings.TrimSpace(body)
	payload, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		// Some clients strip the padding.
		var rawErr error
		payload, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
		if rawErr != nil {
			return EncodedBlob{}, malformedf("invalid base64 body: %v", err)
		}
	}

	return EncodedBlob{format: mime, payload: payload}, nil
}
