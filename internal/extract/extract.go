package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"interview-backend/internal/shared/storage/object"
	"interview-backend/internal/shared/telemetry"
)

const (
	mimePDF   = "application/pdf"
	mimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePlain = "text/plain"

	extractedSuffix = ".extracted.txt"
	maxResumeBytes  = 10 << 20
)

// ErrEmptyText is returned when a document parses but yields no text.
var ErrEmptyText = errors.New("document contains no extractable text")

// Extractor reads résumé files from object storage and returns their text.
// A derived .extracted.txt copy is written next to the source and reused on later calls.
type Extractor struct {
	store object.Store
}

// New builds an Extractor over store.
func New(store object.Store) *Extractor {
	return &Extractor{store: store}
}

// ExtractText returns the plain text of the résumé stored at key.
// Libraries used: github.com/ledongthuc/pdf (PDF); DOCX is read straight from its zip container.
func (e *Extractor) ExtractText(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return "", errors.New("extract text: empty key")
	}

	if cached, ok := e.cached(ctx, key); ok {
		return cached, nil
	}

	body, err := e.store.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s: %w", key, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, maxResumeBytes))
	if err != nil {
		return "", fmt.Errorf("extract text key=%s: read: %w", key, err)
	}

	text, err := ExtractTextFromBytes(ctx, raw, "", key)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s: %w", key, err)
	}

	if _, err := e.store.SaveWithKey(ctx, key+extractedSuffix, "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		telemetry.Warn("extract.cache_write_failed", map[string]any{"key": key, "error": err})
	}
	return text, nil
}

func (e *Extractor) cached(ctx context.Context, key string) (string, bool) {
	rc, err := e.store.Open(ctx, key+extractedSuffix)
	if err != nil {
		return "", false
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	return string(raw), true
}

// ExtractTextFromBytes extracts text from an in-memory payload. mimeType may be
// empty, in which case the type is sniffed from the data and the file name.
func ExtractTextFromBytes(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		text string
		err  error
	)
	normalized := normalizeMimeType(mimeType, fileName, data)
	switch normalized {
	case mimePDF:
		text, err = extractPDF(data)
	case mimeDOCX:
		text, err = extractDOCX(data)
	case mimePlain:
		if !utf8.Valid(data) {
			return "", errors.New("plain text is not valid utf-8")
		}
		text = string(data)
	default:
		return "", fmt.Errorf("unsupported mime type: %s", normalized)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return stripDocxXML(string(raw)), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.StartElement:
			if t.Name.Local == "tab" {
				buf.WriteString("\t")
			}
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func normalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == "" || clean == "application/octet-stream" {
		clean = byExtension(fileName)
	}
	if clean == "" {
		clean = strings.Split(http.DetectContentType(data), ";")[0]
	}
	if clean != "application/zip" {
		return clean
	}

	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}
	if ext := byExtension(fileName); ext != "" {
		return ext
	}
	return clean
}

func byExtension(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".txt", ".md":
		return mimePlain
	default:
		return ""
	}
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			return mimeDOCX
		case "xl/workbook.xml":
			return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		case "ppt/presentation.xml":
			return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
		}
	}
	return ""
}
