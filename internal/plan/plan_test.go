package plan

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseTypedArray(t *testing.T) {
	raw := `[
		{"component_name": "00_Title_Page", "page_start": 1, "page_end": 1, "justification": "First page."},
		{"component_name": "Chapter_01", "page_start": 2, "page_end": 20, "justification": "Outline range."}
	]`
	got, err := Parse(raw, 20)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []Component{
		{ComponentName: "00_Title_Page", PageStart: 1, PageEnd: 1, Justification: "First page."},
		{ComponentName: "Chapter_01", PageStart: 2, PageEnd: 20, Justification: "Outline range."},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParseCommandShapes(t *testing.T) {
	t.Run("cat range", func(t *testing.T) {
		raw := `[{"component_name": "Chapter_01", "pdftk_command": "pdftk IN_FILE cat 2-20 output OUT_FILE", "justification": "x"}]`
		got, err := Parse(raw, 30)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if got[0].PageStart != 2 || got[0].PageEnd != 20 {
			t.Fatalf("range = %d-%d, want 2-20", got[0].PageStart, got[0].PageEnd)
		}
	})

	t.Run("bare cat start runs to total pages", func(t *testing.T) {
		raw := `[{"component_name": "Back_Matter", "pdftk_command": "pdftk IN_FILE cat 25 output OUT_FILE", "justification": "x"}]`
		got, err := Parse(raw, 30)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if got[0].PageStart != 25 || got[0].PageEnd != 30 {
			t.Fatalf("range = %d-%d, want 25-30", got[0].PageStart, got[0].PageEnd)
		}
	})

	t.Run("command without cat token", func(t *testing.T) {
		raw := `[{"component_name": "x", "pdftk_command": "pdftk IN_FILE output OUT_FILE", "justification": "x"}]`
		if _, err := Parse(raw, 30); err == nil {
			t.Fatal("expected error for command without page token")
		}
	})
}

func TestParseLegacyWrapper(t *testing.T) {
	raw := "```json\n" + `{"segmentation_commands": [
		{"component_name": "00_Table_of_Contents", "pdftk_command": "pdftk IN_FILE cat 3-6 output OUT_FILE", "justification": "Contents pages."}
	]}` + "\n```"
	got, err := Parse(raw, 100)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 1 || got[0].PageStart != 3 || got[0].PageEnd != 6 {
		t.Fatalf("Parse() = %+v", got)
	}
}

func TestParseEmptyPlanIsValid(t *testing.T) {
	for _, raw := range []string{`[]`, `{"segmentation_commands": []}`} {
		got, err := Parse(raw, 10)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", raw, err)
		}
		if len(got) != 0 {
			t.Fatalf("Parse(%q) = %+v, want empty", raw, got)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no json", "I could not produce commands."},
		{"object without wrapper", `{"commands": []}`},
		{"element missing name", `[{"page_start": 1, "page_end": 2}]`},
		{"element missing any range", `[{"component_name": "x", "justification": "y"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw, 10)
			var malformed *MalformedPlanError
			if !errors.As(err, &malformed) {
				t.Fatalf("Parse() error = %v, want *MalformedPlanError", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		components []Component
		totalPages int
		wantErr    bool
	}{
		{"valid", []Component{{ComponentName: "a", PageStart: 1, PageEnd: 10}}, 10, false},
		{"start below one", []Component{{ComponentName: "a", PageStart: 0, PageEnd: 5}}, 10, true},
		{"end before start", []Component{{ComponentName: "a", PageStart: 5, PageEnd: 4}}, 10, true},
		{"end past total", []Component{{ComponentName: "a", PageStart: 1, PageEnd: 11}}, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.components, tt.totalPages)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckCompleteness(t *testing.T) {
	t.Run("full cover", func(t *testing.T) {
		comp := CheckCompleteness([]Component{
			{ComponentName: "front", PageStart: 1, PageEnd: 9},
			{ComponentName: "body", PageStart: 10, PageEnd: 20},
		}, 20)
		if !comp.Complete || comp.Gaps != nil || comp.Overlaps != nil {
			t.Fatalf("got %+v, want complete cover", comp)
		}
	})

	t.Run("gap", func(t *testing.T) {
		comp := CheckCompleteness([]Component{
			{ComponentName: "front", PageStart: 1, PageEnd: 5},
			{ComponentName: "body", PageStart: 9, PageEnd: 20},
		}, 20)
		if comp.Complete {
			t.Fatal("expected incomplete")
		}
		if !reflect.DeepEqual(comp.Gaps, []string{"6-8"}) {
			t.Fatalf("Gaps = %v, want [6-8]", comp.Gaps)
		}
	})

	t.Run("overlap", func(t *testing.T) {
		comp := CheckCompleteness([]Component{
			{ComponentName: "front", PageStart: 1, PageEnd: 10},
			{ComponentName: "body", PageStart: 10, PageEnd: 20},
		}, 20)
		if comp.Complete {
			t.Fatal("expected incomplete")
		}
		if !reflect.DeepEqual(comp.Overlaps, []string{"10"}) {
			t.Fatalf("Overlaps = %v, want [10]", comp.Overlaps)
		}
	})

	t.Run("empty plan", func(t *testing.T) {
		comp := CheckCompleteness(nil, 20)
		if comp.Complete {
			t.Fatal("empty plan must not report complete")
		}
	})
}
