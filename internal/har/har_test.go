package har

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"reqreplay/pkg/model"
)

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()

	payload := `{"name":"bo"}`
	active := 0
	rec := model.Recording{
		ID:        "r1",
		Name:      "Login",
		Timestamp: 1700000000000,
		SourceURL: "https://app.com/",
		Entries: []model.Entry{
			{
				URL: "https://api.com/users?page=2", Method: "POST", Status: 201, StatusText: "Created",
				Headers: map[string]string{"content-type": "application/json", "x-id": "1"},
				Body:    `{"id":1}`, Payload: &payload, Kind: model.KindFetch, Time: 1700000000123,
			},
			{
				URL: "https://api.com/a.css", Method: "GET", Status: 200, Body: "body{}",
				Kind: model.KindCSS, Time: 1700000000456, Disabled: true,
				BodyVariants:  []model.BodyVariant{{Name: "default", Body: "body{}"}, {Name: "dark", Body: "body{color:#fff}"}},
				ActiveVariant: &active,
			},
		},
	}

	data, err := Export(rec)
	require.NoError(t, err)
	assert.Equal(t, "1.2", gjson.GetBytes(data, "log.version").String())
	assert.Equal(t, Creator, gjson.GetBytes(data, "log.creator.name").String())
	assert.Equal(t, "page", gjson.GetBytes(data, "log.entries.0.request.queryString.0.name").String())
	assert.Equal(t, "application/json", gjson.GetBytes(data, "log.entries.0.response.content.mimeType").String())
	assert.Equal(t, "https://app.com/", SourceURL(data))

	got, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, rec.Entries, got)
}

func TestImportBrowserHAR(t *testing.T) {
	t.Parallel()

	data := []byte(`{"log":{"version":"1.2","entries":[
		{"startedDateTime":"2024-01-02T03:04:05.678Z","_resourceType":"document",
		 "request":{"method":"get","url":"https://x.com/"},
		 "response":{"status":200,"statusText":"OK","headers":[{"name":"Content-Type","value":"text/html"},{"name":":status","value":"200"}],
		  "content":{"text":"PGgxPmhpPC9oMT4=","encoding":"base64"}}},
		{"request":{"method":"GET","url":"https://x.com/api"},"response":{"status":200,"content":{"text":"[]"}}},
		{"_resourceType":"Stylesheet","request":{"method":"GET","url":"https://x.com/s.css"},"response":{"status":200,"content":{}}},
		{"request":{"method":"GET"},"response":{"status":200}}
	]}}`)

	got, err := Import(data)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "GET", got[0].Method)
	assert.Equal(t, model.KindDoc, got[0].Kind)
	assert.Equal(t, "<h1>hi</h1>", got[0].Body)
	assert.Equal(t, map[string]string{"content-type": "text/html"}, got[0].Headers)
	assert.Equal(t, int64(1704164645678), got[0].Time)
	assert.Nil(t, got[0].Payload)

	assert.Equal(t, model.KindFetch, got[1].Kind)
	assert.Equal(t, "[]", got[1].Body)
	assert.Nil(t, got[1].Headers)

	assert.Equal(t, model.KindCSS, got[2].Kind)
}

func TestImportErrors(t *testing.T) {
	t.Parallel()

	_, err := Import([]byte("{nope"))
	assert.ErrorIs(t, err, ErrNotHAR)

	_, err = Import([]byte(`{"log":{}}`))
	assert.ErrorIs(t, err, ErrNotHAR)

	got, err := Import([]byte(`{"log":{"entries":[]}}`))
	require.NoError(t, err)
	assert.Empty(t, got)
}
