package extract

import (
	"regexp"
	"strings"

	"FinChat/internal/domain/models"
)

var (
	fedMeetingDate   = regexp.MustCompile(`\*\*(?P<date>\d{4}-\d{2}-\d{2})\*\*`)
	fedReleaseDate   = regexp.MustCompile(`\(Released on (?P<date>\d{4}-\d{2}-\d{2})\)`)
	fedStatementLink = regexp.MustCompile(`\[Full Statement\]\((?P<link>.+?)\)`)
	fedMinutesLink   = regexp.MustCompile(`\[Full Minutes\]\((?P<link>.+?)\)`)
)

const fedStatementLabel = "- **Statement**:"

// ParseFedSummary reads a Fed meeting digest: "---" separated blocks, each opening with a bolded
// meeting date.
//
//	**2024-05-01** (Released on 2024-05-22)
//	- **Statement**: The Committee decided to maintain ...
//	- [Full Statement](https://...)
//	- [Full Minutes](https://...)
func ParseFedSummary(text string) models.ParsedFedResult {
	raw := strings.TrimSpace(text)
	meetings := make([]models.FedMeeting, 0)

	for _, block := range SplitBlocks(raw, "---", HasPrefix("**")) {
		statement, _ := spanUntil(block, fedStatementLabel, 1, "\n- [Full Statement]", "\n- [Full Minutes]")
		meetings = append(meetings, models.FedMeeting{
			MeetingDate:   captureOr(fedMeetingDate, block, "date", ""),
			ReleaseDate:   captureOr(fedReleaseDate, block, "date", ""),
			Statement:     strings.TrimSpace(statement),
			StatementLink: captureOr(fedStatementLink, block, "link", ""),
			MinutesLink:   captureOr(fedMinutesLink, block, "link", ""),
		})
	}

	return models.ParsedFedResult{
		Meetings:     meetings,
		RawText:      raw,
		IsStructured: len(meetings) > 0,
	}
}
