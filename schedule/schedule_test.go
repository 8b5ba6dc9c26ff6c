package schedule

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  Entry
		ok    bool
	}{
		{
			name:  "documented pattern",
			title: "Algebra II (S1 3 Smith) Period 3",
			want:  Entry{Period: 3, Course: "Algebra II", Teacher: "Smith"},
			ok:    true,
		},
		{
			name:  "course name with parens",
			title: "AP Physics C (Mech) (S2 6 Nguyen) Block B",
			want:  Entry{Period: 6, Course: "AP Physics C (Mech)", Teacher: "Nguyen"},
			ok:    true,
		},
		{
			name:  "multi-word teacher",
			title: "US History (S1 4 Van Houten) Period 4",
			want:  Entry{Period: 4, Course: "US History", Teacher: "Van Houten"},
			ok:    true,
		},
		{
			name:  "extra code tokens before period",
			title: "Chemistry H (Fall S1 2 Lee) Period 2",
			want:  Entry{Period: 2, Course: "Chemistry H", Teacher: "Lee"},
			ok:    true,
		},
		{
			name:  "no match",
			title: "not a matching string",
			ok:    false,
		},
		{
			name:  "advisory block without parens",
			title: "Class of 2027 Advisory",
			ok:    false,
		},
		{
			name:  "empty",
			title: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.title)
			if ok != tt.ok {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.title, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.title, got, tt.want)
			}
		})
	}
}

func TestFilterValid(t *testing.T) {
	in := []Entry{
		{Period: -1, Course: "Negative"},
		{Period: 0, Course: "Zero"},
		{Period: 8, Course: "Eight"},
		{Period: 9, Course: "Nine"},
		{Period: 4, Course: "Four"},
	}
	got := FilterValid(in)
	want := []Entry{
		{Period: 0, Course: "Zero"},
		{Period: 8, Course: "Eight"},
		{Period: 4, Course: "Four"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterValid = %+v, want %+v", got, want)
	}
}

func TestSortByPeriodStable(t *testing.T) {
	in := []Entry{
		{Period: 5, Course: "B"},
		{Period: 1, Course: "A"},
		{Period: 5, Course: "C"},
		{Period: 0, Course: "Z"},
	}
	got := SortByPeriod(in)
	want := []Entry{
		{Period: 0, Course: "Z"},
		{Period: 1, Course: "A"},
		{Period: 5, Course: "B"},
		{Period: 5, Course: "C"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortByPeriod = %+v, want %+v", got, want)
	}
}

func TestFromTitles(t *testing.T) {
	titles := []string{
		"English 10A (S1 6 Brown) Period 6",
		"club announcements",
		"Algebra II (S1 3 Smith) Period 3",
		"Lab Assistant (S1 9 Gray) Period 9", // parses but out of range
	}
	got := FromTitles(titles)
	want := []Entry{
		{Period: 3, Course: "Algebra II", Teacher: "Smith"},
		{Period: 6, Course: "English 10A", Teacher: "Brown"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FromTitles = %+v, want %+v", got, want)
	}
}

func TestNormalizeTeacher(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Smith", "smith"},
		{"Jane O'Brien-Smith", "jane-obrien-smith"},
		{"Van Houten", "van-houten"},
		{"DeLuca Jr.", "deluca-jr"},
		{"  ", "--"},
	}
	for _, tt := range tests {
		if got := NormalizeTeacher(tt.in); got != tt.want {
			t.Errorf("NormalizeTeacher(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
