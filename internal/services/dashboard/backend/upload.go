package backend

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxUploadBytes is the largest accepted crop image.
const MaxUploadBytes = 16 << 20

// User facing messages for rejected input.
const (
	MsgNoImage        = "Please select an image first."
	MsgInvalidImage   = "Please select a valid image file."
	MsgImageTooLarge  = "Image file is too large. Please select a file under 16MB."
	MsgMissingTraceID = "Please enter a record ID to trace."
	MsgInvalidTraceID = "Please enter a numeric record ID."
	MsgEmptyMessage   = "Please enter a message."
)

// Upload is a validated crop image held in memory until it is analysed.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ValidateUpload applies the image rules: an image/* type no larger than
// MaxUploadBytes.
func ValidateUpload(contentType string, size int64) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return &InputError{Field: "image", Message: MsgInvalidImage}
	}
	if size > MaxUploadBytes {
		return &InputError{Field: "image", Message: MsgImageTooLarge}
	}
	return nil
}

// ReadUpload validates and reads a multipart file. A missing file is an
// InputError. When the part carries no usable type the content is sniffed.
func ReadUpload(file multipart.File, header *multipart.FileHeader) (*Upload, error) {
	if file == nil || header == nil {
		return nil, &InputError{Field: "image", Message: MsgNoImage}
	}
	if header.Size > MaxUploadBytes {
		return nil, &InputError{Field: "image", Message: MsgImageTooLarge}
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read upload")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if err := ValidateUpload(contentType, int64(len(data))); err != nil {
		return nil, err
	}

	return &Upload{Filename: header.Filename, ContentType: contentType, Data: data}, nil
}

func (u *Upload) multipartBody(field string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+escapeQuotes(u.Filename)+`"`)
	h.Set("Content-Type", u.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create multipart part")
	}
	if _, err := part.Write(u.Data); err != nil {
		return nil, "", errors.Wrap(err, "failed to write multipart part")
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to close multipart writer")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	if s == "" {
		return "image"
	}
	return quoteEscaper.Replace(s)
}

// ParseTraceID validates the record id typed by the user.
func ParseTraceID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &InputError{Field: "record_id", Message: MsgMissingTraceID}
	}
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, &InputError{Field: "record_id", Message: MsgInvalidTraceID}
	}
	return id, nil
}

// ValidateChatMessage trims the prompt and rejects empty ones.
func ValidateChatMessage(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &InputError{Field: "prompt", Message: MsgEmptyMessage}
	}
	return s, nil
}
