// Package extract turns supporting documents into short plain-text excerpts
// for agent context.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"assessment-backend/internal/shared/storage/object"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	extractedSuffix = ".extracted.txt"
	maxSourceBytes  = 20 << 20
)

// ErrUnsupported is returned for document types without a text extractor.
var ErrUnsupported = errors.New("unsupported document type")

// Excerpt returns up to maxChars of normalized text from the stored document.
// The full extracted text is cached next to the source under
// <key>.extracted.txt and reused on later calls.
func Excerpt(ctx context.Context, store object.ObjectStore, key, mimeType, fileName string, maxChars int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := cachedText(ctx, store, key)
	if err != nil {
		text, err = extractAndCache(ctx, store, key, mimeType, fileName)
		if err != nil {
			return "", err
		}
	}
	return truncate(normalizeSpace(text), maxChars), nil
}

func cachedText(ctx context.Context, store object.ObjectStore, key string) (string, error) {
	rc, err := store.Open(ctx, key+extractedSuffix)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func extractAndCache(ctx context.Context, store object.ObjectStore, key, mimeType, fileName string) (string, error) {
	body, err := store.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("extract key=%s: %w", key, err)
	}
	defer body.Close()
	raw, err := io.ReadAll(io.LimitReader(body, maxSourceBytes))
	if err != nil {
		return "", fmt.Errorf("extract key=%s: read: %w", key, err)
	}
	text, err := TextFromBytes(ctx, raw, mimeType, fileName)
	if err != nil {
		return "", fmt.Errorf("extract key=%s mime=%s: %w", key, mimeType, err)
	}
	// Cache failures only cost a re-extract next time.
	_, _ = store.SaveWithKey(ctx, key+extractedSuffix, "text/plain; charset=utf-8", strings.NewReader(text))
	return text, nil
}

// TextFromBytes extracts text from an in-memory payload.
func TextFromBytes(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch normalized := normalizeMimeType(mimeType, fileName, data); {
	case normalized == mimePDF:
		return extractPDF(data)
	case normalized == mimeDOCX:
		return extractDOCX(data)
	case strings.HasPrefix(normalized, "text/"), normalized == "application/json":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid utf-8", ErrUnsupported, normalized)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, normalized)
	}
}

func extractPDF(data []byte) (string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
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
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		return stripDocxXML(raw), nil
	}
	return "", errors.New("document.xml file not found")
}

func stripDocxXML(raw []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return buf.String()
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func normalizeMimeType(mimeType, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch clean {
	case "", "application/octet-stream", "application/zip":
	default:
		return clean
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".txt", ".md", ".csv":
		return "text/plain"
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return mimePDF
	}
	return clean
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxChars])) + "…"
}
