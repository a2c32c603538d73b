package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"reqreplay/internal/ctxkeys"
	"reqreplay/internal/logger"
	"reqreplay/pkg/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB("file::memory:", "test_", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func samplePersisted() model.Persisted {
	payload := `{"q":1}`
	active := 1
	return model.Persisted{
		Recordings: []model.Recording{
			{
				ID:        "r1",
				Name:      "Recording 1",
				Timestamp: 1700000000000,
				SourceURL: "https://x.com/",
				Entries: []model.Entry{
					{
						URL: "https://x.com/api", Method: "POST", Status: 201, StatusText: "Created",
						Headers: map[string]string{"content-type": "application/json"},
						Body:    "b", Payload: &payload, Kind: model.KindFetch, Time: 1,
						BodyVariants:  []model.BodyVariant{{Name: "default", Body: "a"}, {Name: "x", Body: "b"}},
						ActiveVariant: &active,
					},
					{URL: "https://x.com/off", Method: "GET", Status: 200, Kind: model.KindXHR, Disabled: true},
				},
				IgnorePatterns: []string{"ads"},
				OriginGroupIDs: []model.OriginGroupID{"g1"},
			},
			{ID: "r0", Name: "second", Entries: []model.Entry{}, IgnorePatterns: []string{}},
		},
		RecordFilters:  []model.Kind{model.KindXHR, model.KindDoc},
		IgnorePatterns: []string{"/track\\d+/"},
		ActiveReplays:  map[model.RecordingID]model.TargetID{"r1": "tab"},
		OriginGroups: []model.OriginGroup{
			{ID: "g1", Name: "api", Mappings: [][]string{{"https://dev.api.com", "https://api.com"}}},
		},
	}
}

func TestSnapshotRepoRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewSnapshotRepo(newTestDB(t))

	want := samplePersisted()
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSnapshotRepoReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewSnapshotRepo(newTestDB(t))
	require.NoError(t, repo.Save(ctx, samplePersisted()))

	next := model.Persisted{
		Recordings:     []model.Recording{{ID: "r9", Name: "only", Entries: []model.Entry{}, IgnorePatterns: []string{}}},
		RecordFilters:  []model.Kind{},
		IgnorePatterns: []string{},
		ActiveReplays:  map[model.RecordingID]model.TargetID{},
	}
	require.NoError(t, repo.Save(ctx, next))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Recordings, 1)
	assert.Equal(t, model.RecordingID("r9"), got.Recordings[0].ID)
	assert.Empty(t, got.OriginGroups)
	assert.Empty(t, got.ActiveReplays)
	assert.Equal(t, []model.Kind{}, got.RecordFilters)
}

func TestSnapshotRepoEmpty(t *testing.T) {
	t.Parallel()

	got, err := NewSnapshotRepo(newTestDB(t)).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Recordings)
	assert.Nil(t, got.RecordFilters)
	assert.NotNil(t, got.ActiveReplays)
}

func TestSnapshotRepoCorruptEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.GormDB().Create(&Recording{RecordingID: "bad", Name: "bad", EntriesJSON: "{not json"}).Error)

	_, err := NewSnapshotRepo(db).Load(ctx)
	assert.Error(t, err)
}

func TestNewDBFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "data.db")
	db, err := NewDB(path, "reqreplay_", nil)
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.GormDB().Migrator().HasTable("reqreplay_recordings"))
	assert.True(t, db.GormDB().Migrator().HasTable("reqreplay_origin_groups"))
	assert.True(t, db.GormDB().Migrator().HasTable("reqreplay_settings"))
}

func TestGormLoggerTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	gl := NewGormLogger(logger.NewWithWriter(&buf, zerolog.DebugLevel))
	ctx := ctxkeys.WithTraceID(context.Background(), "trace-1")

	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Contains(t, buf.String(), "trace-1")
	assert.Contains(t, buf.String(), "SELECT 1")

	buf.Reset()
	gl.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 2", 1 }, nil)
	assert.Empty(t, buf.String())
}
