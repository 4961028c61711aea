package outline

import (
	"strconv"
	"strings"

	"github.com/local/bookpipe/internal/evidence"
)

const (
	markBegin = "BookmarkBegin"
	markTitle = "BookmarkTitle: "
	markLevel = "BookmarkLevel: "
	markPage  = "BookmarkPageNumber: "
)

// ParseDumpData extracts the bookmark list from a `pdftk dump_data_utf8`
// output. The dump is block structured: BookmarkBegin resets the current
// entry, and title/level/page arrive as separate key-value lines. An entry is
// emitted only once all three have been seen since the last begin marker
// (emission happens at the page line). Dump levels are 1-based and are
// decremented to the zero-based convention; unparseable integers skip the
// line.
func ParseDumpData(dump string) []evidence.OutlineEntry {
	var entries []evidence.OutlineEntry

	var cur evidence.OutlineEntry
	var haveTitle, haveLevel bool

	for _, line := range strings.Split(dump, "\n") {
		switch {
		case strings.HasPrefix(line, markBegin):
			cur = evidence.OutlineEntry{}
			haveTitle, haveLevel = false, false
		case strings.HasPrefix(line, markTitle):
			cur.Title = strings.TrimSuffix(line[len(markTitle):], "\r")
			haveTitle = true
		case strings.HasPrefix(line, markLevel):
			n, err := strconv.Atoi(strings.TrimSpace(line[len(markLevel):]))
			if err != nil {
				continue
			}
			cur.Level = n - 1
			haveLevel = true
		case strings.HasPrefix(line, markPage):
			n, err := strconv.Atoi(strings.TrimSpace(line[len(markPage):]))
			if err != nil {
				continue
			}
			cur.Page = n
			if haveTitle && haveLevel {
				entries = append(entries, cur)
			}
		}
	}
	return entries
}
