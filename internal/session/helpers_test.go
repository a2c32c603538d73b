package session

import (
	"fmt"
	"time"

	"reqreplay/pkg/model"
)

func testEnv() Env {
	var n int
	return Env{
		Now: func() time.Time { return time.UnixMilli(1_700_000_000_000) },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
}

func fetchEntry(url string) model.Entry {
	return model.Entry{URL: url, Method: "GET", Status: 200, Body: "{}", Kind: model.KindFetch}
}

func stateWith(recs ...model.Recording) State {
	s := NewState()
	s.Recordings = recs
	return s
}

func rec(id string, entries ...model.Entry) model.Recording {
	if entries == nil {
		entries = []model.Entry{}
	}
	return model.Recording{ID: model.RecordingID(id), Name: "r" + id, Entries: entries, IgnorePatterns: []string{}}
}

func intPtr(v int) *int { return &v }
