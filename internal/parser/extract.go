package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"policy-rag/internal/config"
	"policy-rag/internal/models"
)

// Page is one unit of raw document text in reading order. PDF pages map 1:1,
// spreadsheet sheets are treated as pages, and flat formats produce a single
// page.
type Page struct {
	Number int
	Text   string
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = config.DefaultChunkSize
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = config.DefaultChunkOverlap
	}
	return o
}

var (
	policyNameRe = regexp.MustCompile(models.PolicyNameRegex)
	newlineRunRe = regexp.MustCompile(`\n+`)
	spaceRunRe   = regexp.MustCompile(`\s{2,}`)
)

// normalizeWhitespace collapses newline runs to a single space, squeezes runs
// of 2+ whitespace characters, and trims.
func normalizeWhitespace(text string) string {
	text = newlineRunRe.ReplaceAllString(text, " ")
	text = spaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// detectPolicyName returns the first title-case phrase ending in "Policy" that
// does not contain a blacklisted near-miss, or "" when the page has none.
func detectPolicyName(text string) string {
	for _, match := range policyNameRe.FindAllString(text, -1) {
		blacklisted := false
		for _, bad := range models.PolicyNameBlacklist {
			if strings.Contains(match, bad) {
				blacklisted = true
				break
			}
		}
		if !blacklisted {
			return strings.TrimSpace(match)
		}
	}
	return ""
}

// ExtractPages turns ordered pages into metadata-tagged chunks. The current
// policy name is threaded through the page loop: once detected it sticks until
// a later page detects a different one. Chunk IDs increase strictly across the
// whole document.
func ExtractPages(pages []Page, source string, opts Options) ([]models.Chunk, error) {
	opts = opts.withDefaults()
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(opts.ChunkSize),
		textsplitter.WithChunkOverlap(opts.ChunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ".", " ", ""}),
	)

	var chunks []models.Chunk
	chunkID := 0
	currentPolicy := ""
	for _, page := range pages {
		text := normalizeWhitespace(page.Text)
		if text == "" {
			continue
		}
		if detected := detectPolicyName(text); detected != "" {
			currentPolicy = detected
		}

		parts, err := splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("splitting page %d: %w", page.Number, err)
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			content := part
			if currentPolicy != "" {
				content = fmt.Sprintf("[Policy: %s]\n%s", currentPolicy, part)
			}
			chunks = append(chunks, models.Chunk{
				Source:     source,
				Page:       page.Number,
				ChunkID:    chunkID,
				PolicyName: currentPolicy,
				Content:    content,
			})
			chunkID++
		}
	}
	return chunks, nil
}
