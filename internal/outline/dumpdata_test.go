package outline

import (
	"reflect"
	"testing"

	"github.com/local/bookpipe/internal/evidence"
)

func TestParseDumpData(t *testing.T) {
	dump := `InfoBegin
InfoKey: Title
InfoValue: Some Book
NumberOfPages: 320
BookmarkBegin
BookmarkTitle: Preface
BookmarkLevel: 1
BookmarkPageNumber: 5
BookmarkBegin
BookmarkTitle: Chapter 1
BookmarkLevel: 1
BookmarkPageNumber: 11
BookmarkBegin
BookmarkTitle: Greedy versus Non-Greedy
BookmarkLevel: 2
BookmarkPageNumber: 17
`
	got := ParseDumpData(dump)
	want := []evidence.OutlineEntry{
		{Title: "Preface", Page: 5, Level: 0},
		{Title: "Chapter 1", Page: 11, Level: 0},
		{Title: "Greedy versus Non-Greedy", Page: 17, Level: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseDumpData() = %+v, want %+v", got, want)
	}
}

func TestParseDumpDataIncompleteAndMalformed(t *testing.T) {
	t.Run("entry without page is not emitted", func(t *testing.T) {
		dump := "BookmarkBegin\nBookmarkTitle: Orphan\nBookmarkLevel: 1\n"
		if got := ParseDumpData(dump); got != nil {
			t.Fatalf("expected no entries, got %+v", got)
		}
	})

	t.Run("unparseable integers skip the line", func(t *testing.T) {
		dump := "BookmarkBegin\nBookmarkTitle: Ch1\nBookmarkLevel: one\nBookmarkPageNumber: 3\n" +
			"BookmarkBegin\nBookmarkTitle: Ch2\nBookmarkLevel: 1\nBookmarkPageNumber: nine\n" +
			"BookmarkBegin\nBookmarkTitle: Ch3\nBookmarkLevel: 2\nBookmarkPageNumber: 12\n"
		got := ParseDumpData(dump)
		want := []evidence.OutlineEntry{{Title: "Ch3", Page: 12, Level: 1}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("ParseDumpData() = %+v, want %+v", got, want)
		}
	})

	t.Run("CRLF titles are trimmed", func(t *testing.T) {
		dump := "BookmarkBegin\r\nBookmarkTitle: Ch1\r\nBookmarkLevel: 1\r\nBookmarkPageNumber: 2\r\n"
		got := ParseDumpData(dump)
		if len(got) != 1 || got[0].Title != "Ch1" {
			t.Fatalf("ParseDumpData() = %+v, want single Ch1 entry", got)
		}
	})

	t.Run("empty dump", func(t *testing.T) {
		if got := ParseDumpData(""); got != nil {
			t.Fatalf("expected no entries, got %+v", got)
		}
	})
}
