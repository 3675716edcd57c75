package common

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDirectionText(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Direction
	}{
		{"up", Up}, {"DOWN", Down}, {"", Idle}, {"stop", Idle},
	} {
		got, err := ParseDirection(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseDirection(%q) = %v, %v", tc.in, got, err)
		}
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}
	if Up.Opposite() != Down || Idle.Opposite() != Idle {
		t.Errorf("Opposite() is wrong")
	}
}

func TestRequestJSON(t *testing.T) {
	r := NewHallRequest(4, Down, 17)
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() returned %v", err)
	}
	var back Request
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal(%s) returned %v", b, err)
	}
	if back != r {
		t.Errorf("got %+v, expected %+v", back, r)
	}
	if err := json.Unmarshal([]byte(`{"direction":"left"}`), &back); err == nil {
		t.Errorf("expected an error for an unknown direction")
	}
}

func TestNewRequestsHaveUniqueIDs(t *testing.T) {
	seen := map[RequestID]bool{}
	for i := 0; i < 100; i++ {
		id := NewCarRequest(1, 0).ID
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestCarStateIsIdle(t *testing.T) {
	if !(CarState{}).IsIdle() {
		t.Errorf("zero state should be idle")
	}
	if (CarState{Door: Open}).IsIdle() {
		t.Errorf("open door is not idle")
	}
	if (CarState{Requests: []Request{{Floor: 2}}}).IsIdle() {
		t.Errorf("car with requests is not idle")
	}
}

func TestSortByFloor(t *testing.T) {
	reqs := []Request{
		{Floor: 5, Kind: Car, CreatedAt: 1},
		{Floor: 2, Kind: Hall, Direction: Down, CreatedAt: 3},
		{Floor: 5, Kind: Hall, Direction: Up, CreatedAt: 9},
		{Floor: 2, Kind: Hall, Direction: Up, CreatedAt: 3},
	}
	SortByFloor(reqs)
	if reqs[0].Direction != Up || reqs[1].Direction != Down || reqs[2].Kind != Hall || reqs[3].Kind != Car {
		t.Errorf("unexpected order %+v", reqs)
	}
}

func TestCopyCarStates(t *testing.T) {
	states := []CarState{{ID: 1, UpQueue: []int{3, 4}, Requests: []Request{{Floor: 3}}}}
	cp, err := CopyCarStates(states)
	if err != nil {
		t.Fatalf("CopyCarStates() returned %v", err)
	}
	cp[0].UpQueue[0] = 9
	cp[0].Requests[0].Floor = 9
	if states[0].UpQueue[0] != 3 || states[0].Requests[0].Floor != 3 {
		t.Errorf("copy shares memory with the original")
	}
	if nilCopy, err := CopyCarStates(nil); err != nil || nilCopy != nil {
		t.Errorf("CopyCarStates(nil) = %v, %v", nilCopy, err)
	}
}

func TestTrimZeros(t *testing.T) {
	if got := string(TrimZeros([]byte{'h', 'i', 0, 0, 0})); got != "hi" {
		t.Errorf("TrimZeros() = %q", got)
	}
	if got := TrimZeros([]byte{0, 0}); len(got) != 0 {
		t.Errorf("TrimZeros() = %v", got)
	}
}
