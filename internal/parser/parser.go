package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"policy-rag/internal/models"
)

// ExtractDocument reads a raw document and produces the ordered chunk
// sequence. The format is chosen by the source identifier's extension;
// policy PDFs are the primary format, the rest cover admin uploads of
// annexures and plain-text policy wordings.
func ExtractDocument(data []byte, source string, opts Options) ([]models.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(source))

	var (
		pages []Page
		err   error
	)
	switch ext {
	case ".pdf":
		pages, err = pagesFromPDF(data)
	case ".docx":
		pages, err = pagesFromDOCX(data)
	case ".md", ".markdown":
		pages, err = pagesFromMarkdown(data)
	case ".xlsx":
		pages, err = pagesFromXLSX(data)
	case ".txt":
		pages = []Page{{Number: 1, Text: string(data)}}
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, err
	}
	return ExtractPages(pages, source, opts)
}

func pagesFromPDF(data []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}

	var pages []Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// pages that yield no text are skipped, not fatal
			log.Debug().Err(err).Int("page", i).Msg("Skipping unreadable page")
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

var xmlTagRe = regexp.MustCompile(`<[^>]*>`)

func pagesFromDOCX(data []byte) ([]Page, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	text := xmlTagRe.ReplaceAllString(content, " ")
	return []Page{{Number: 1, Text: text}}, nil
}

func pagesFromMarkdown(data []byte) ([]Page, error) {
	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(data))

	var buf strings.Builder
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			buf.Write(t.Segment.Value(data))
			buf.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking markdown: %w", err)
	}
	return []Page{{Number: 1, Text: buf.String()}}, nil
}

func pagesFromXLSX(data []byte) ([]Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading xlsx: %w", err)
	}
	defer f.Close()

	var pages []Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		pages = append(pages, Page{Number: sheetNum + 1, Text: text.String()})
	}
	return pages, nil
}
