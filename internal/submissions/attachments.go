package submissions

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF = "application/pdf"

	methodText = "text"
	methodOCR  = "ocr"
)

// AllowedExtensions is the attachment allow-list.
var AllowedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".jpe", ".bmp", ".tiff", ".tif"}

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jpe":  "image/jpeg",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// Accepts reports whether a file name carries an allowed extension.
func Accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Attachment is a file queued for upload with the invoice.
type Attachment struct {
	Name string
	Data []byte
}

// ContentType guesses the part content type from the extension.
func (a Attachment) ContentType() string {
	ext := strings.ToLower(filepath.Ext(a.Name))
	if ext == ".pdf" {
		return mimePDF
	}
	if ct, ok := imageTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Label is the display form "name (x.xx KB)".
func (a Attachment) Label() string {
	return fmt.Sprintf("%s (%s)", a.Name, formatKB(len(a.Data)))
}

// AttachmentInfo describes an attachment before upload.
type AttachmentInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Size    string `json:"size"`
	Type    string `json:"content_type"`
	Method  string `json:"method"`
	Pages   int    `json:"pages,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// Inspect reports how the backend will read the attachment. PDFs with a text
// layer are read directly; images and scanned PDFs go through OCR.
func Inspect(a Attachment) AttachmentInfo {
	info := AttachmentInfo{
		Name:   a.Name,
		Label:  a.Label(),
		Size:   formatKB(len(a.Data)),
		Type:   a.ContentType(),
		Method: methodOCR,
	}
	if info.Type != mimePDF {
		return info
	}
	pages, text, err := readPDF(a.Data)
	if err != nil {
		info.Warning = "unreadable PDF: " + err.Error()
		return info
	}
	info.Pages = pages
	if strings.TrimSpace(text) != "" {
		info.Method = methodText
	}
	return info
}

// readPDF returns the page count and plain text of a PDF. The parser panics
// on some malformed cross-reference tables.
func readPDF(data []byte) (pages int, text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	if len(data) == 0 {
		return 0, "", errors.New("empty pdf data")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, "", err
	}
	return reader.NumPage(), plainText(reader), nil
}

// plainText is best effort: fonts without a usable encoding yield no text.
func plainText(reader *pdf.Reader) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	plain, err := reader.GetPlainText()
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return ""
	}
	return buf.String()
}

func formatKB(size int) string {
	return fmt.Sprintf("%.2f KB", float64(size)/1024)
}
