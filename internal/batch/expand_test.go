package batch

import (
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
)

func TestExpandIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []int
	}{
		{in: "111", want: []int{111}},
		{in: "111,115", want: []int{111, 115}},
		{in: "111,115-117", want: []int{111, 115, 116, 117}},
		{in: " 120 - 122 , 100 ", want: []int{120, 121, 122, 100}},
		{in: "5,5,4-5", want: []int{5, 5, 4, 5}},
		{in: "7-7", want: []int{7}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ExpandIDs(tc.in)
			if err != nil {
				t.Fatalf("ExpandIDs() error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExpandIDs(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestExpandIDs_RangeIsInclusiveAscending(t *testing.T) {
	t.Parallel()

	for _, r := range [][2]int{{1, 1}, {100, 150}, {1000, 1099}} {
		a, b := r[0], r[1]
		got, err := ExpandIDs(strconv.Itoa(a) + "-" + strconv.Itoa(b))
		if err != nil {
			t.Fatalf("ExpandIDs(%d-%d) error: %v", a, b, err)
		}
		if len(got) != b-a+1 {
			t.Fatalf("len = %d, want %d", len(got), b-a+1)
		}
		for i, id := range got {
			if id != a+i {
				t.Fatalf("got[%d] = %d, want %d", i, id, a+i)
			}
		}
	}
}

func TestExpandIDs_Rejects(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"   ",
		"abc",
		"100,",
		",100",
		"100,,101",
		"0",
		"-5",
		"5-",
		"120-110",
		"1-2-3",
		"1.5",
		"1-101",     // 101 ids
		"1-60,1-41", // 101 ids across tokens
		"100,200-10",
	}
	for _, in := range tests {
		ids, err := ExpandIDs(in)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("ExpandIDs(%q) error = %v, want ValidationError", in, err)
		}
		if ids != nil {
			t.Fatalf("ExpandIDs(%q) returned partial ids %v", in, ids)
		}
	}
}

func TestExpandIDs_CapIsInclusive(t *testing.T) {
	t.Parallel()

	got, err := ExpandIDs("1-100")
	if err != nil {
		t.Fatalf("ExpandIDs() error: %v", err)
	}
	if len(got) != MaxIDs {
		t.Fatalf("len = %d, want %d", len(got), MaxIDs)
	}
}

func TestExpandArgs(t *testing.T) {
	t.Parallel()

	got, err := ExpandArgs([]string{"100", "101-103", " ", "110,111"})
	if err != nil {
		t.Fatalf("ExpandArgs() error: %v", err)
	}
	want := []int{100, 101, 102, 103, 110, 111}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandArgs() = %v, want %v", got, want)
	}

	if _, err := ExpandArgs(nil); err == nil {
		t.Fatalf("ExpandArgs(nil) error = nil, want error")
	}
}

func TestJoinArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"120"}, want: "120"},
		{args: []string{"100", "101-102"}, want: "100,101-102"},
		{args: []string{" 100 ", "", "110,111"}, want: "100,110,111"},
		{args: nil, want: ""},
	}
	for _, tt := range tests {
		if got := JoinArgs(tt.args); got != tt.want {
			t.Fatalf("JoinArgs(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
