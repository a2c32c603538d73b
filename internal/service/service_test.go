package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqreplay/internal/config"
	"reqreplay/internal/session"
	"reqreplay/pkg/model"
)

func testEnv() session.Env {
	var n atomic.Int64
	return session.Env{
		Now:   func() time.Time { return time.UnixMilli(1_700_000_000_000) },
		NewID: func() string { return fmt.Sprintf("id-%d", n.Add(1)) },
	}
}

func newService(t *testing.T, dsn string) *Service {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Sqlite.Dsn = dsn
	svc, err := New(context.Background(), cfg, nil, WithEnv(testEnv()))
	require.NoError(t, err)
	return svc
}

const sampleHAR = `{"log":{"version":"1.2","pages":[{"title":"https://app.com/"}],"entries":[
	{"_resourceType":"fetch","request":{"method":"GET","url":"https://api.com/users/:id"},
	 "response":{"status":200,"statusText":"OK","headers":[{"name":"Content-Type","value":"application/json"}],
	  "content":{"mimeType":"application/json","text":"{\"id\":\"{{id}}\"}"}}}
]}}`

func TestImportExportHAR(t *testing.T) {
	t.Parallel()

	svc := newService(t, "file::memory:")
	t.Cleanup(func() { _ = svc.Close() })
	ctx := context.Background()

	id, err := svc.ImportHAR(ctx, []byte(sampleHAR), "Users API")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, ok := svc.Recording(id)
	require.True(t, ok)
	assert.Equal(t, "Users API", rec.Name)
	require.Len(t, rec.Entries, 1)
	assert.Equal(t, model.KindFetch, rec.Entries[0].Kind)

	data, err := svc.ExportHAR(id)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://api.com/users/:id")

	_, err = svc.ExportHAR("missing")
	assert.ErrorIs(t, err, session.ErrRecordingNotFound)

	_, err = svc.ImportHAR(ctx, []byte(`{"log":{"entries":[]}}`), "")
	assert.ErrorIs(t, err, ErrEmptyImport)

	_, err = svc.ImportHAR(ctx, []byte(`not json`), "")
	assert.Error(t, err)
}

func TestReplayModeFromImportedRecording(t *testing.T) {
	t.Parallel()

	svc := newService(t, "file::memory:")
	t.Cleanup(func() { _ = svc.Close() })
	ctx := context.Background()

	id, err := svc.ImportHAR(ctx, []byte(sampleHAR), "")
	require.NoError(t, err)
	require.NoError(t, svc.Dispatch(ctx, session.StartReplay{ID: id, Target: "tab-9"}).Err)

	payload := svc.ResolveModeFor("tab-9")
	assert.Equal(t, model.ModeReplay, payload.Mode)
	assert.Len(t, payload.Entries, 1)
	assert.Equal(t, model.ModeNone, svc.ResolveModeFor("tab-1").Mode)
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "data", "reqreplay.db")
	ctx := context.Background()

	svc := newService(t, dsn)
	id, err := svc.ImportHAR(ctx, []byte(sampleHAR), "Saved")
	require.NoError(t, err)
	svc.Dispatch(ctx, session.AddIgnore{Pattern: "analytics"})
	require.NoError(t, svc.Dispatch(ctx, session.StartReplay{ID: id, Target: "tab-1"}).Err)
	require.NoError(t, svc.Close())

	reopened := newService(t, dsn)
	t.Cleanup(func() { _ = reopened.Close() })

	sum := reopened.Summary()
	require.Len(t, sum.Recordings, 1)
	assert.Equal(t, "Saved", sum.Recordings[0].Name)
	assert.Equal(t, []string{"analytics"}, sum.IgnorePatterns)
	assert.Equal(t, map[model.RecordingID]model.TargetID{id: "tab-1"}, sum.ActiveReplays)
	assert.Equal(t, model.ModeReplay, reopened.ResolveModeFor("tab-1").Mode)
}
