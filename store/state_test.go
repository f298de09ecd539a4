package store

import (
	"testing"

	. "github.com/Comcast/stash/util/testutil"
)

func TestStateCopy(t *testing.T) {
	s := State{
		"items": []interface{}{"a"},
		"count": 1,
	}

	c := s.Copy()
	c["count"] = 2

	if s["count"] != 1 {
		t.Fatalf("count == %#v", s["count"])
	}
}

func TestStateMerge(t *testing.T) {
	tests := []struct {
		name    string
		state   string
		partial string
		want    string
	}{
		{
			name:    "overwrite one field",
			state:   `{"items":[],"count":0}`,
			partial: `{"count":1}`,
			want:    `{"count":1,"items":[]}`,
		},
		{
			name:    "empty partial",
			state:   `{"count":0}`,
			partial: `{}`,
			want:    `{"count":0}`,
		},
		{
			name:    "new field",
			state:   `{"count":0}`,
			partial: `{"likes":"tacos"}`,
			want:    `{"count":0,"likes":"tacos"}`,
		},
		{
			name:    "empty state",
			state:   `{}`,
			partial: `{"count":1}`,
			want:    `{"count":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := State(DwimState(tt.state))
			partial := State(DwimState(tt.partial))

			got := state.Merge(partial)

			if JS(got) != JS(DwimState(tt.want)) {
				t.Fatalf("got %s, want %s", JS(got), tt.want)
			}
		})
	}
}

func TestStateMergeMakesNewMap(t *testing.T) {
	s := State{"count": 0}
	m := s.Merge(State{"count": 1})

	if s["count"] != 0 {
		t.Fatalf("previous state was modified: %s", JS(s))
	}
	m["count"] = 2
	if s["count"] != 0 {
		t.Fatal("merged state shares the previous state's map")
	}
}
