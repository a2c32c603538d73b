package capture

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqreplay/pkg/traffic"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestFetch(t *testing.T) {
	t.Parallel()

	gzBody := gzipBytes(t, "console.log(1)")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain.css":
			w.Header().Set("Content-Type", "text/css")
			w.Header().Set("X-Seen-Cookie", r.Header.Get("Cookie"))
			w.Header().Set("X-Seen-Encoding", r.Header.Get("Accept-Encoding"))
			_, _ = w.Write([]byte("body{color:red}"))
		case "/gzip.js":
			w.Header().Set("Content-Type", "application/javascript")
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gzBody)
		case "/broken.js":
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write([]byte("not gzip"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	f := New(2*time.Second, nil)
	ctx := context.Background()

	t.Run("plain_body_and_headers", func(t *testing.T) {
		h := traffic.Header{}
		h.Set("Cookie", "sid=1")
		h.Set("Accept-Encoding", "br")
		h.Set("Host", "elsewhere")

		res := f.Fetch(ctx, srv.URL+"/plain.css", h)
		assert.Equal(t, "body{color:red}", res.Body)
		assert.Equal(t, "text/css", res.Headers["content-type"])
		assert.Equal(t, "sid=1", res.Headers["x-seen-cookie"])
		assert.Equal(t, acceptEncoding, res.Headers["x-seen-encoding"])
	})

	t.Run("gzip_decoded", func(t *testing.T) {
		res := f.Fetch(ctx, srv.URL+"/gzip.js", nil)
		assert.Equal(t, "console.log(1)", res.Body)
		assert.NotContains(t, res.Headers, "content-encoding")
	})

	t.Run("decode_failure_is_empty", func(t *testing.T) {
		res := f.Fetch(ctx, srv.URL+"/broken.js", nil)
		assert.Empty(t, res.Body)
		assert.NotNil(t, res.Headers)
		assert.Empty(t, res.Headers)
	})

	t.Run("http_error_still_returns_body", func(t *testing.T) {
		res := f.Fetch(ctx, srv.URL+"/missing", nil)
		assert.Contains(t, res.Body, "404")
	})
}

func TestFetchFailureIsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(time.Second, nil)
	for _, u := range []string{addr + "/gone.css", "::bad", ""} {
		res := f.Fetch(context.Background(), u, nil)
		assert.Empty(t, res.Body, u)
		assert.NotNil(t, res.Headers, u)
		assert.Empty(t, res.Headers, u)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("identity", func(t *testing.T) {
		out, decoded := Decode([]byte("abc"), "")
		assert.False(t, decoded)
		assert.Equal(t, []byte("abc"), out)
	})

	t.Run("gzip_alias", func(t *testing.T) {
		out, decoded := Decode(gzipBytes(t, "hello"), " X-GZIP ")
		assert.True(t, decoded)
		assert.Equal(t, []byte("hello"), out)
	})

	t.Run("zlib_wrapped_deflate", func(t *testing.T) {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		_, err := w.Write([]byte("deflated"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		out, decoded := Decode(buf.Bytes(), "deflate")
		assert.True(t, decoded)
		assert.Equal(t, []byte("deflated"), out)
	})

	t.Run("zstd", func(t *testing.T) {
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		data := enc.EncodeAll([]byte("zstd body"), nil)
		require.NoError(t, enc.Close())

		out, decoded := Decode(data, "zstd")
		assert.True(t, decoded)
		assert.Equal(t, []byte("zstd body"), out)
	})

	t.Run("multiple_encodings_untouched", func(t *testing.T) {
		out, decoded := Decode([]byte("x"), "gzip, br")
		assert.False(t, decoded)
		assert.Equal(t, []byte("x"), out)
	})

	t.Run("corrupt", func(t *testing.T) {
		out, decoded := Decode([]byte("nope"), "gzip")
		assert.True(t, decoded)
		assert.Nil(t, out)
	})
}
