package extract

import "strings"

// SplitBlocks cuts text on the literal delimiter, trims every piece and keeps the non-empty pieces that
// pass keep. Input without the delimiter yields at most one block.
func SplitBlocks(text, delimiter string, keep func(string) bool) []string {
	if text == "" {
		return nil
	}
	var parts []string
	if delimiter == "" {
		parts = []string{text}
	} else {
		parts = strings.Split(text, delimiter)
	}

	blocks := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if keep != nil && !keep(p) {
			continue
		}
		blocks = append(blocks, p)
	}
	return blocks
}

// Contains keeps blocks that mention marker anywhere.
func Contains(marker string) func(string) bool {
	return func(block string) bool { return strings.Contains(block, marker) }
}

// HasPrefix keeps blocks that start with marker.
func HasPrefix(marker string) func(string) bool {
	return func(block string) bool { return strings.HasPrefix(block, marker) }
}

// lines splits on \n and drops a trailing \r from each line.
func lines(text string) []string {
	out := strings.Split(text, "\n")
	for i, l := range out {
		out[i] = strings.TrimSuffix(l, "\r")
	}
	return out
}
