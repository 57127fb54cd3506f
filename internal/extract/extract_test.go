package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	if documentXML != "" {
		f, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = f.Write([]byte(documentXML))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

const docXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Unit 1: </w:t></w:r><w:r><w:t>Regression</w:t></w:r></w:p>
<w:p><w:r><w:t>A residual is the error.</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestDocx(t *testing.T) {
	text, err := Docx(buildDocx(t, docXML))
	require.NoError(t, err)
	assert.Equal(t, "Unit 1: Regression\nA residual is the error.", text)
}

func TestDocx_Invalid(t *testing.T) {
	_, err := Docx([]byte("not a zip"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Docx(buildDocx(t, ""))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPages(t *testing.T) {
	in := "Page one line  \r\nsecond\n\n\n\nafter gap" + PageBreak + "   \n" + PageBreak + "Page three"
	out, err := Pages(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Page one line\nsecond\n\nafter gap\nPage three", out)
}

func TestPages_KeepsOrder(t *testing.T) {
	var pages []string
	for i := 0; i < 50; i++ {
		pages = append(pages, strings.Repeat("p", i+1))
	}
	out, err := Pages(context.Background(), strings.Join(pages, PageBreak))
	require.NoError(t, err)
	assert.Equal(t, strings.Join(pages, "\n"), out)
}

func TestPages_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Pages(ctx, "a"+PageBreak+"b")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()

	md := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(md, []byte("# Title\nBody.\n"), 0o600))
	text, err := File(context.Background(), md)
	require.NoError(t, err)
	assert.Equal(t, "# Title\nBody.", text)

	docx := filepath.Join(dir, "notes.DOCX")
	require.NoError(t, os.WriteFile(docx, buildDocx(t, docXML), 0o600))
	text, err = File(context.Background(), docx)
	require.NoError(t, err)
	assert.Contains(t, text, "Regression")

	pdf := filepath.Join(dir, "slides.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o600))
	_, err = File(context.Background(), pdf)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = File(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
