package keys

import (
	"errors"
	"testing"
)

func TestParseCourseKeyRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "canonical",
			in:   "course-v1:MITx+6.002x+2024_Spring",
			want: "course-v1:MITx+6.002x+2024_Spring",
		},
		{
			name: "legacy_slash_form",
			in:   "MITx/6.002x/2024_Spring",
			want: "course-v1:MITx+6.002x+2024_Spring",
		},
		{
			name: "dotted_org",
			in:   "course-v1:mit.eecs+6002x+2014",
			want: "course-v1:mit.eecs+6002x+2014",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			k, err := ParseCourseKey(tc.in)
			if err != nil {
				t.Fatalf("ParseCourseKey(%q): %v", tc.in, err)
			}
			if got := k.String(); got != tc.want {
				t.Fatalf("String()=%q, want %q", got, tc.want)
			}
			again, err := ParseCourseKey(k.String())
			if err != nil {
				t.Fatalf("re-parse: %v", err)
			}
			if again != k {
				t.Fatalf("re-parse gave %+v, want %+v", again, k)
			}
		})
	}
}

func TestParseCourseKeyLegacyEqualsCanonical(t *testing.T) {
	a, err := ParseCourseKey("course-v1:X+Y+2024")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseCourseKey("X/Y/2024")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("canonical %+v != legacy %+v", a, b)
	}
}

func TestParseCourseKeyRejects(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		segment string
	}{
		{name: "empty", in: "", segment: "key"},
		{name: "whitespace_inside", in: "course-v1:X+Y Z+2024", segment: "course"},
		{name: "trailing_space", in: "course-v1:X+Y+2024 ", segment: "key"},
		{name: "missing_run", in: "course-v1:X+Y", segment: "key"},
		{name: "empty_org", in: "course-v1:+Y+2024", segment: "org"},
		{name: "empty_run_legacy", in: "X/Y/", segment: "run"},
		{name: "control_char", in: "course-v1:X+Y\x00+2024", segment: "course"},
		{name: "too_many_slashes", in: "X/Y/Z/W", segment: "key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCourseKey(tc.in)
			if err == nil {
				t.Fatalf("ParseCourseKey(%q) succeeded, want error", tc.in)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error is %T, want *ParseError", err)
			}
			if perr.Segment != tc.segment {
				t.Fatalf("segment=%q, want %q", perr.Segment, tc.segment)
			}
		})
	}
}

func TestParseUsageKey(t *testing.T) {
	in := "block-v1:X+Y+2024+type@problem+block@ps1_q2"
	k, err := ParseUsageKey(in)
	if err != nil {
		t.Fatal(err)
	}
	if k.Course.Org != "X" || k.Course.Run != "2024" {
		t.Fatalf("course fields wrong: %+v", k.Course)
	}
	if k.BlockType != "problem" || k.BlockID != "ps1_q2" {
		t.Fatalf("block fields wrong: %+v", k)
	}
	if got := k.String(); got != in {
		t.Fatalf("String()=%q, want %q", got, in)
	}
}

func TestParseUsageKeyRejects(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		segment string
	}{
		{name: "legacy_i4x", in: "i4x://X/Y/problem/q1", segment: "run"},
		{name: "no_prefix", in: "X+Y+2024+type@problem+block@q1", segment: "key"},
		{name: "missing_block", in: "block-v1:X+Y+2024+type@problem", segment: "key"},
		{name: "bad_type_marker", in: "block-v1:X+Y+2024+kind@problem+block@q1", segment: "block_type"},
		{name: "empty_block_id", in: "block-v1:X+Y+2024+type@problem+block@", segment: "block_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseUsageKey(tc.in)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("ParseUsageKey(%q) err=%v, want *ParseError", tc.in, err)
			}
			if perr.Segment != tc.segment {
				t.Fatalf("segment=%q, want %q", perr.Segment, tc.segment)
			}
		})
	}
}

func TestUsageKeyAsMapKey(t *testing.T) {
	course, _ := ParseCourseKey("course-v1:X+Y+2024")
	a := course.Usage("problem", "q1")
	b, _ := ParseUsageKey("block-v1:X+Y+2024+type@problem+block@q1")
	m := map[UsageKey]int{a: 1}
	if m[b] != 1 {
		t.Fatalf("parsed and constructed keys do not collide in map: %+v vs %+v", a, b)
	}
}
