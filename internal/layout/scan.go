package layout

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/bookpipe/internal/evidence"
)

// DefaultMaxPages bounds the scan when a non-positive limit is passed in.
const DefaultMaxPages = 50

// pageNumberWindow is how many trailing characters of a page's text are
// inspected for a page-number token.
const pageNumberWindow = 50

const (
	styleRoman  = "roman"
	styleArabic = "arabic"
)

var (
	fontSizeRegex = regexp.MustCompile(`font-size:\s*(\d+(?:\.\d+)?)(?:pt|px)`)
	arabicRegex   = regexp.MustCompile(`\b(\d{1,4})\b\s*$`)
	romanRegex    = regexp.MustCompile(`\b([ivxlcdm]+)\b\s*$`)
)

// Result is the layout evidence fragment for one document.
type Result struct {
	DistinctFontSizes int
	TopFontSizes      []evidence.FontSizeCount
	TransitionFound   bool
	PageNumberStyles  []string
	PagesScanned      int
}

// Analyze scans at most the first maxPages pages, tallying rounded font-size
// frequencies and the per-page page-numbering style. The numbering transition
// is declared only when a Roman-style page is followed, strictly after the
// last Roman-style page in scan order, by an Arabic-style page.
func Analyze(path string, maxPages int) (*Result, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if defaultOpener == nil {
		return nil, errors.New("no PDF opener configured")
	}

	doc, err := defaultOpener.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	scan := total
	if scan > maxPages {
		scan = maxPages
	}

	fontSizes := make(map[int]int)
	var styleSequence []string

	for i := 0; i < scan; i++ {
		if html, herr := doc.HTML(i); herr == nil {
			tallyFontSizes(fontSizes, html)
		} else {
			log.Debug().Err(herr).Int("page", i+1).Str("file", path).Msg("structured text unavailable for page")
		}

		text, terr := doc.Text(i)
		if terr != nil {
			log.Debug().Err(terr).Int("page", i+1).Str("file", path).Msg("text extraction failed for page")
			continue
		}
		if style := pageNumberStyle(text); style != "" {
			styleSequence = append(styleSequence, style)
		}
	}

	return &Result{
		DistinctFontSizes: len(fontSizes),
		TopFontSizes:      topFontSizes(fontSizes, 5),
		TransitionFound:   transitionFound(styleSequence),
		PageNumberStyles:  uniqueInOrder(styleSequence),
		PagesScanned:      scan,
	}, nil
}

// tallyFontSizes merges frequencies by the rounded size key.
func tallyFontSizes(acc map[int]int, html string) {
	for _, m := range fontSizeRegex.FindAllStringSubmatch(html, -1) {
		size, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		acc[int(math.Round(size))]++
	}
}

// pageNumberStyle inspects the trailing window of the page text for a
// page-number token. Arabic wins when both match.
func pageNumberStyle(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	runes := []rune(trimmed)
	if len(runes) > pageNumberWindow {
		runes = runes[len(runes)-pageNumberWindow:]
	}
	window := string(runes)

	if arabicRegex.MatchString(window) {
		return styleArabic
	}
	if romanRegex.MatchString(strings.ToLower(window)) {
		return styleRoman
	}
	return ""
}

// transitionFound reports Roman front matter followed by an Arabic body: both
// styles present and the first Arabic-style page strictly after the last
// Roman-style page in scan order.
func transitionFound(styles []string) bool {
	lastRoman := -1
	firstArabic := -1
	for i, s := range styles {
		if s == styleRoman {
			lastRoman = i
		}
		if s == styleArabic && firstArabic == -1 {
			firstArabic = i
		}
	}
	return lastRoman >= 0 && firstArabic >= 0 && firstArabic > lastRoman
}

func topFontSizes(acc map[int]int, n int) []evidence.FontSizeCount {
	out := make([]evidence.FontSizeCount, 0, len(acc))
	for size, count := range acc {
		out = append(out, evidence.FontSizeCount{Size: size, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Size < out[j].Size
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func uniqueInOrder(styles []string) []string {
	var out []string
	seen := make(map[string]struct{}, 2)
	for _, s := range styles {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
