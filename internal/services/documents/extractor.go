// Package documents extracts plain text from uploaded files so the assistant can read them.
package documents

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	domsvc "FinChat/internal/domain/service"
)

var ErrUnsupportedType = errors.New("unsupported document type")

// Extractor handles .pdf, .md, .txt and .csv locally. Other types return
// ErrUnsupportedType so callers can fall back to the backend parser.
type Extractor struct {
	maxChars int
	md       goldmark.Markdown
}

func NewExtractor() *Extractor {
	return &Extractor{
		maxChars: 200000,
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		out string
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		out, err = e.pdfText(path)
	case ".md", ".markdown":
		out, err = e.markdownText(path)
	case ".txt":
		var b []byte
		b, err = os.ReadFile(path)
		out = string(b)
	case ".csv":
		out, err = csvText(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(out)
	if r := []rune(out); len(r) > e.maxChars {
		out = string(r[:e.maxChars])
	}
	return out, nil
}

func (e *Extractor) pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(t)
		sb.WriteString("\n")
		if sb.Len() > e.maxChars*4 {
			break
		}
	}
	return sb.String(), nil
}

func (e *Extractor) markdownText(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return MarkdownToText(e.md, src), nil
}

// MarkdownToText renders the text content of a markdown document, one block per line.
func MarkdownToText(md goldmark.Markdown, src []byte) string {
	doc := md.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && !inlineBlock(n.Kind()) {
				ensureNewline(&buf)
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.URL(src))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *east.TableCell:
			if n.PreviousSibling() != nil {
				buf.WriteString(" , ")
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func inlineBlock(k ast.NodeKind) bool {
	return k == ast.KindDocument || k == ast.KindList || k == east.KindTableCell
}

func ensureNewline(buf *bytes.Buffer) {
	if b := buf.Bytes(); len(b) > 0 && b[len(b)-1] != '\n' {
		buf.WriteByte('\n')
	}
}

func csvText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read csv: %w", err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		rows = append(rows, strings.Join(rec, " , "))
	}
	return strings.Join(rows, "\n"), nil
}

var _ domsvc.DocumentExtractor = (*Extractor)(nil)
