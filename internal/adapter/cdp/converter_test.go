package cdp

import (
	"testing"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqreplay/pkg/model"
	"reqreplay/pkg/traffic"
)

func pausedRequest() *fetch.RequestPausedReply {
	post := `{"q":1}`
	return &fetch.RequestPausedReply{
		RequestID: "interception-1",
		Request: network.Request{
			URL:      "https://api.com/users?page=2",
			Method:   "POST",
			Headers:  network.Headers(`{"Content-Type":"application/json","X-Token":"abc"}`),
			PostData: &post,
		},
		ResourceType: network.ResourceType("XHR"),
	}
}

func TestToNeutralRequest(t *testing.T) {
	t.Parallel()

	req := ToNeutralRequest("tab-1", pausedRequest())
	assert.Equal(t, "interception-1", req.ID)
	assert.Equal(t, model.TargetID("tab-1"), req.Target)
	assert.Equal(t, traffic.StageRequest, req.Stage)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "XHR", req.ResourceType)
	assert.Equal(t, "application/json", req.Headers.Get("content-type"))
	assert.Equal(t, "abc", req.Headers["x-token"])
	assert.Equal(t, []byte(`{"q":1}`), req.Body)
}

func TestToNeutralRequestResponseStage(t *testing.T) {
	t.Parallel()

	ev := pausedRequest()
	status := 201
	ev.ResponseStatusCode = &status
	assert.Equal(t, traffic.StageResponse, ToNeutralRequest("", ev).Stage)
}

func TestToNeutralResponse(t *testing.T) {
	t.Parallel()

	ev := pausedRequest()
	status := 404
	ev.ResponseStatusCode = &status
	ev.ResponseHeaders = []fetch.HeaderEntry{
		{Name: "Content-Type", Value: "text/plain"},
		{Name: "Set-Cookie", Value: "a=1"},
		{Name: "set-cookie", Value: "b=2"},
	}

	res := ToNeutralResponse(ev, []byte("missing"))
	assert.Equal(t, 404, res.StatusCode)
	assert.Equal(t, "Not Found", res.StatusText)
	assert.Equal(t, "text/plain", res.Headers.Get("Content-Type"))
	assert.Equal(t, "a=1\nb=2", res.Headers.Get("set-cookie"))
	assert.Equal(t, []byte("missing"), res.Body)

	entries := ToHeaderEntries(res.Headers)
	assert.Len(t, entries, 3)
	assert.Contains(t, entries, fetch.HeaderEntry{Name: "set-cookie", Value: "b=2"})
}

func TestToEntry(t *testing.T) {
	t.Parallel()

	req := ToNeutralRequest("tab-1", pausedRequest())
	res := traffic.NewResponse()
	res.StatusText = "OK"
	res.Headers.Set("Content-Type", "application/json")
	res.Body = []byte(`{"ok":true}`)

	e := ToEntry(req, res, model.KindXHR, 1234)
	assert.Equal(t, "https://api.com/users?page=2", e.URL)
	assert.Equal(t, "POST", e.Method)
	assert.Equal(t, 200, e.Status)
	assert.Equal(t, "OK", e.StatusText)
	assert.Equal(t, `{"ok":true}`, e.Body)
	assert.Equal(t, model.KindXHR, e.Kind)
	assert.Equal(t, int64(1234), e.Time)
	assert.Equal(t, map[string]string{"content-type": "application/json"}, e.Headers)
	require.NotNil(t, e.Payload)
	assert.Equal(t, `{"q":1}`, *e.Payload)

	t.Run("no_request_body", func(t *testing.T) {
		req := traffic.NewRequest()
		req.URL, req.Method = "https://api.com/x", "GET"
		e := ToEntry(req, nil, model.KindFetch, 1)
		assert.Nil(t, e.Payload)
		assert.Zero(t, e.Status)
		assert.NotNil(t, e.Headers)
	})
}

func TestFromEntry(t *testing.T) {
	t.Parallel()

	e := model.Entry{Status: 201, StatusText: "Created", Headers: map[string]string{
		"Content-Type":     "application/json",
		"content-encoding": "gzip",
		"Content-Length":   "120",
	}}
	res := FromEntry(&e, `{"id":1}`)
	assert.Len(t, res.Headers, 1)
	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, "Created", res.StatusText)
	assert.Equal(t, "application/json", res.Headers.Get("content-type"))
	assert.Equal(t, []byte(`{"id":1}`), res.Body)

	assert.Equal(t, 200, FromEntry(&model.Entry{}, "").StatusCode)
}
