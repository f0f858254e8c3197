package gmail

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document/parser"
)

type attachmentKind int

const (
	kindUnknown attachmentKind = iota
	kindText
	kindPDF
	kindDOCX
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	docxBody = "word/document.xml"
	// pdfTimeout bounds a single PDF parse.
	pdfTimeout = 30 * time.Second
)

// kindOf classifies an attachment by MIME type, falling back to the file
// extension because mail clients often send documents as octet-stream.
func kindOf(mimeType, filename string) attachmentKind {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return kindText
	case mimeType == mimePDF:
		return kindPDF
	case mimeType == mimeDOCX:
		return kindDOCX
	}

	switch strings.ToLower(path.Ext(filename)) {
	case ".txt":
		return kindText
	case ".pdf":
		return kindPDF
	case ".docx":
		return kindDOCX
	}
	return kindUnknown
}

func (k attachmentKind) maxBytes() int64 {
	if k == kindText {
		return maxAttachmentBytes
	}
	return maxDocumentBytes
}

func newPDFParser(ctx context.Context) (parser.Parser, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("create pdf parser: %w", err)
	}
	return p, nil
}

// extractor turns attachment bytes into text.
type extractor struct {
	// pdf is nil when PDF attachments should be ignored.
	pdf parser.Parser
}

var errNoPDFParser = errors.New("pdf parser is not configured")

func (e *extractor) text(ctx context.Context, att attachment, data []byte) (string, error) {
	switch att.kind {
	case kindText:
		return string(data), nil
	case kindPDF:
		return e.pdfText(ctx, att.filename, data)
	case kindDOCX:
		return docxText(data)
	default:
		return "", fmt.Errorf("unsupported attachment %q", att.filename)
	}
}

func (e *extractor) pdfText(ctx context.Context, filename string, data []byte) (string, error) {
	if e.pdf == nil {
		return "", errNoPDFParser
	}

	ctx, cancel := context.WithTimeout(ctx, pdfTimeout)
	defer cancel()

	docs, err := e.pdf.Parse(ctx, bytes.NewReader(data), parser.WithURI(filename))
	if err != nil {
		return "", fmt.Errorf("parse pdf %q: %w", filename, err)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if content := strings.TrimSpace(doc.Content); content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// docxText reads the paragraphs of the main document part of a DOCX file.
func docxText(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, f := range archive.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBody, err)
		}
		defer rc.Close()
		return wordprocessingText(io.LimitReader(rc, maxDocumentBytes))
	}
	return "", fmt.Errorf("docx has no %s", docxBody)
}

func wordprocessingText(r io.Reader) (string, error) {
	var (
		b      strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", docxBody, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
