package gmail

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gm "google.golang.org/api/gmail/v1"
)

type fakePDF struct {
	content string
	err     error
	got     []byte
}

func (f *fakePDF) Parse(_ context.Context, r io.Reader, _ ...parser.Option) ([]*schema.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.got = data
	if f.err != nil {
		return nil, f.err
	}
	return []*schema.Document{{Content: f.content}}, nil
}

func docx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		mime, filename string
		want           attachmentKind
	}{
		{"text/plain", "absage.txt", kindText},
		{"application/pdf", "absage.pdf", kindPDF},
		{"application/octet-stream", "Einladung.PDF", kindPDF},
		{mimeDOCX, "absage.docx", kindDOCX},
		{"application/octet-stream", "angebot.docx", kindDOCX},
		{"image/png", "logo.png", kindUnknown},
	}
	for _, tt := range tests {
		if got := kindOf(tt.mime, tt.filename); got != tt.want {
			t.Fatalf("kindOf(%q, %q) = %d, want %d", tt.mime, tt.filename, got, tt.want)
		}
	}
}

func TestDocxText(t *testing.T) {
	data := docx(t, `<w:p><w:r><w:t>Leider müssen wir</w:t></w:r><w:r><w:t xml:space="preserve"> Ihnen absagen.</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Mit freundlichen</w:t><w:br/><w:t>Grüßen</w:t></w:r></w:p>`)

	text, err := docxText(data)
	require.NoError(t, err)
	assert.Equal(t, "Leider müssen wir Ihnen absagen.\nMit freundlichen\nGrüßen", text)

	_, err = docxText([]byte("not a zip"))
	assert.Error(t, err)
}

func TestFetchReadsDocumentAttachments(t *testing.T) {
	pdfBytes := []byte("%PDF-1.4 rejection letter")
	msg := &gm.Message{
		Id:           "m4",
		InternalDate: time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC).UnixMilli(),
		Payload: &gm.MessagePart{
			MimeType: "multipart/mixed",
			Headers:  []*gm.MessagePartHeader{{Name: "Subject", Value: "Ihre Bewerbung"}},
			Parts: []*gm.MessagePart{
				{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: encode("Details im Anhang.")}},
				{
					MimeType: "application/pdf",
					Filename: "absage.pdf",
					Body:     &gm.MessagePartBody{AttachmentId: "pdf", Size: int64(len(pdfBytes))},
				},
				{
					MimeType: "application/octet-stream",
					Filename: "einladung.docx",
					Body:     &gm.MessagePartBody{Data: base64Docx(t, `<w:p><w:r><w:t>Einladung zum Vorstellungsgespräch</w:t></w:r></w:p>`), Size: 900},
				},
				{
					MimeType: "image/png",
					Filename: "logo.png",
					Body:     &gm.MessagePartBody{AttachmentId: "png", Size: 100},
				},
			},
		},
	}
	box := &fakeMailbox{
		ids:         []string{"m4"},
		messages:    map[string]*gm.Message{"m4": msg},
		attachments: map[string]string{"pdf": string(pdfBytes)},
	}
	pdf := &fakePDF{content: "Wir haben uns für andere Bewerber entschieden."}
	src := newSource(box, Config{}, nil)
	src.docs.pdf = pdf

	raws, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, []string{
		"Wir haben uns für andere Bewerber entschieden.",
		"Einladung zum Vorstellungsgespräch",
	}, raws[0].Attachments)
	assert.Equal(t, pdfBytes, pdf.got)
}

func TestFetchSkipsUnreadableDocuments(t *testing.T) {
	msg := &gm.Message{
		Id: "m5",
		Payload: &gm.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gm.MessagePart{
				{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: encode("Siehe Anhang")}},
				{MimeType: "application/pdf", Filename: "kaputt.pdf", Body: &gm.MessagePartBody{AttachmentId: "pdf", Size: 10}},
				{MimeType: "application/pdf", Filename: "riesig.pdf", Body: &gm.MessagePartBody{AttachmentId: "big", Size: maxDocumentBytes + 1}},
			},
		},
	}
	box := &fakeMailbox{
		ids:         []string{"m5"},
		messages:    map[string]*gm.Message{"m5": msg},
		attachments: map[string]string{"pdf": "garbage"},
	}
	src := newSource(box, Config{}, nil)
	src.docs.pdf = &fakePDF{err: errors.New("malformed xref table")}

	raws, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Empty(t, raws[0].Attachments)
	assert.Equal(t, "Siehe Anhang", raws[0].Body)
}

func TestPDFWithoutParserIsSkipped(t *testing.T) {
	e := &extractor{}
	_, err := e.text(context.Background(), attachment{filename: "a.pdf", kind: kindPDF}, []byte("%PDF"))
	assert.ErrorIs(t, err, errNoPDFParser)
}

func TestNewPDFParser(t *testing.T) {
	p, err := newPDFParser(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func base64Docx(t *testing.T, body string) string {
	t.Helper()
	return encode(string(docx(t, body)))
}
