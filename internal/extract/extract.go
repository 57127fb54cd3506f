// Package extract reads the plain text of study documents.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"studyrag/internal/domain"
)

// PageBreak separates pages in plain text exports.
const PageBreak = "\f"

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// SupportedExtensions lists the file types File accepts.
var SupportedExtensions = []string{".txt", ".md", ".docx"}

// File returns the text of the document at path, chosen by extension.
func File(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		return Pages(ctx, string(data))
	case ".docx":
		return Docx(data)
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, ext)
	}
}

// Pages cleans every form-feed separated page concurrently and joins the non
// empty pages in their original order.
func Pages(ctx context.Context, text string) (string, error) {
	pages := strings.Split(text, PageBreak)
	cleaned := make([]string, len(pages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cleaned[i] = CleanPage(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	out := cleaned[:0]
	for _, p := range cleaned {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n"), nil
}

// CleanPage normalises line endings, strips trailing blanks and collapses
// runs of empty lines.
func CleanPage(page string) string {
	page = strings.ReplaceAll(page, "\r\n", "\n")
	page = trailingSpace.ReplaceAllString(page+"\n", "\n")
	page = blankRuns.ReplaceAllString(page, "\n\n")
	return strings.TrimSpace(page)
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

// Docx returns the paragraphs of word/document.xml, one per line.
func Docx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a docx archive: %v", domain.ErrInvalidInput, err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: opening document.xml: %v", domain.ErrInvalidInput, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: reading document.xml: %v", domain.ErrInvalidInput, err)
		}

		var doc documentXML
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("%w: parsing document.xml: %v", domain.ErrInvalidInput, err)
		}
		lines := make([]string, len(doc.Body.Paragraphs))
		for i, p := range doc.Body.Paragraphs {
			var b strings.Builder
			for _, r := range p.Runs {
				for _, t := range r.Text {
					b.WriteString(t.Content)
				}
			}
			lines[i] = b.String()
		}
		return strings.TrimSpace(strings.Join(lines, "\n")), nil
	}
	return "", fmt.Errorf("%w: docx has no word/document.xml", domain.ErrInvalidInput)
}
