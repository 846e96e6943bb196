package extract

import (
	"regexp"
	"strings"

	"FinChat/internal/domain/models"
)

var (
	newsTitle    = regexp.MustCompile(`\[title\]\s+\*\*(?P<title>.+?)\*\*`)
	newsTime     = regexp.MustCompile(`\[time\]\s+(?P<time>.+)`)
	newsCategory = regexp.MustCompile(`\[category\]\s+(?P<category>.+)`)
	newsRank     = regexp.MustCompile(`\[rank\]\s+(?P<rank>[\d.]+)`)
	newsLink     = regexp.MustCompile(`\[Link\]\s+(?P<link>.+)`)
)

// ParseNewsSummary reads a news digest. Every "---" block that carries a [title] label becomes one
// article; the other labels are optional.
func ParseNewsSummary(text string) models.ParsedNewsResult {
	raw := strings.TrimSpace(text)
	articles := make([]models.NewsArticle, 0)

	for _, block := range SplitBlocks(raw, "---", Contains("[title]")) {
		rank := 0.0
		if v := ParseNumber(captureOr(newsRank, block, "rank", "")); v != nil {
			rank = *v
		}
		articles = append(articles, models.NewsArticle{
			Title:    captureOr(newsTitle, block, "title", ""),
			Time:     strings.TrimSpace(captureOr(newsTime, block, "time", "")),
			Category: strings.TrimSpace(captureOr(newsCategory, block, "category", "")),
			Rank:     rank,
			Content:  newsContent(block),
			Link:     strings.TrimSpace(captureOr(newsLink, block, "link", "")),
		})
	}

	return models.ParsedNewsResult{
		Articles:     articles,
		RawText:      raw,
		IsStructured: len(articles) > 0,
	}
}

// newsContent is the text after "[content]" up to the "- [Link]" line. The label must be followed by
// whitespace and at least one more character before the link line.
func newsContent(block string) string {
	const label = "[content]"
	offset := 0
	for {
		i := strings.Index(block[offset:], label)
		if i < 0 {
			return ""
		}
		from := offset + i + len(label)
		if from+1 < len(block) && isSpace(block[from]) {
			rest := block[from+1:]
			if j := strings.Index(rest[1:], "\n- [Link]"); j >= 0 {
				return strings.TrimSpace(rest[:j+1])
			}
		}
		offset = from
	}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
