package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqreplay/pkg/model"
)

func TestIgnorePatterns(t *testing.T) {
	t.Parallel()

	s := NewState().AddIgnore("ads").AddIgnore(" ads ").AddIgnore("").AddIgnore("/track/")
	assert.Equal(t, []string{"ads", "/track/"}, s.IgnorePatterns)
	assert.Equal(t, []string{"/track/"}, s.RemoveIgnore("ads").IgnorePatterns)
	assert.Equal(t, s, s.RemoveIgnore("missing"))

	r := stateWith(rec("r1")).AddRecordingIgnore("r1", "x").AddRecordingIgnore("r1", "x")
	assert.Equal(t, []string{"x"}, r.Recordings[0].IgnorePatterns)
	assert.Empty(t, r.RemoveRecordingIgnore("r1", "x").Recordings[0].IgnorePatterns)
	assert.Equal(t, r, r.AddRecordingIgnore("missing", "y"))
}

func TestSetFilters(t *testing.T) {
	t.Parallel()

	s := NewState().SetFilters([]model.Kind{model.KindDoc, "video", model.KindDoc, model.KindCSS})
	assert.Equal(t, []model.Kind{model.KindDoc, model.KindCSS}, s.RecordFilters)
}

func TestOriginGroups(t *testing.T) {
	t.Parallel()

	env := testEnv()
	s := stateWith(rec("r1"), rec("r2"))
	s, g1 := s.AddOriginGroup(" api ", [][]string{{"https://dev.api.com/", "https://API.com"}}, env)
	s, g2 := s.AddOriginGroup("cdn", [][]string{{"https://a.com", "https://b.com"}}, env)
	require.Len(t, s.OriginGroups, 2)
	assert.Equal(t, "api", s.OriginGroups[0].Name)
	assert.Equal(t, [][]string{{"https://dev.api.com", "https://api.com"}}, s.OriginGroups[0].Mappings)

	t.Run("assign_drops_unknown_and_duplicates", func(t *testing.T) {
		a := s.SetRecordingOriginGroups("r1", []model.OriginGroupID{g2, "ghost", g1, g2})
		assert.Equal(t, []model.OriginGroupID{g2, g1}, a.Recordings[0].OriginGroupIDs)
	})

	t.Run("update", func(t *testing.T) {
		u := s.UpdateOriginGroup(g1, "renamed", [][]string{{"https://x.com", "https://y.com"}})
		assert.Equal(t, "renamed", u.OriginGroups[0].Name)
		assert.Equal(t, [][]string{{"https://x.com", "https://y.com"}}, u.OriginGroups[0].Mappings)
		assert.Equal(t, "api", s.OriginGroups[0].Name)
		assert.Equal(t, s, s.UpdateOriginGroup("ghost", "n", nil))
	})

	t.Run("delete_removes_references", func(t *testing.T) {
		a := s.SetRecordingOriginGroups("r1", []model.OriginGroupID{g1, g2}).
			SetRecordingOriginGroups("r2", []model.OriginGroupID{g1})
		d := a.DeleteOriginGroup(g1)
		require.Len(t, d.OriginGroups, 1)
		assert.Equal(t, []model.OriginGroupID{g2}, d.Recordings[0].OriginGroupIDs)
		assert.Empty(t, d.Recordings[1].OriginGroupIDs)
		assert.Equal(t, []model.OriginGroupID{g1, g2}, a.Recordings[0].OriginGroupIDs)
	})
}

func TestSniff(t *testing.T) {
	t.Parallel()

	env := testEnv()

	t.Run("toggle_clears_requests", func(t *testing.T) {
		s := NewState()
		s.Requests = []model.ObservedRequest{{URL: "old"}}
		on := s.ToggleSniff("tab")
		assert.True(t, on.Sniffing)
		assert.Empty(t, on.Requests)
		assert.Equal(t, model.TargetID("tab"), on.SniffTarget)

		off := on.RequestObserved("tab", "GET", "https://a.com", "XHR", env).ToggleSniff("")
		assert.False(t, off.Sniffing)
		assert.Empty(t, off.SniffTarget)
		assert.Len(t, off.Requests, 1)
	})

	t.Run("observed_respects_target", func(t *testing.T) {
		s := NewState().ToggleSniff("tab")
		s = s.RequestObserved("tab", "GET", "https://a.com/1", "XHR", env)
		s = s.RequestObserved("other", "GET", "https://a.com/2", "XHR", env)
		require.Len(t, s.Requests, 1)
		assert.Equal(t, model.ObservedRequest{Method: "GET", URL: "https://a.com/1", Type: "XHR", Time: 1_700_000_000_000}, s.Requests[0])

		all := NewState().ToggleSniff("")
		all = all.RequestObserved("a", "GET", "u1", "", env).RequestObserved("b", "GET", "u2", "", env)
		assert.Len(t, all.Requests, 2)
	})

	t.Run("not_sniffing", func(t *testing.T) {
		s := NewState().RequestObserved("tab", "GET", "https://a.com", "XHR", env)
		assert.Empty(t, s.Requests)
	})

	t.Run("completed_sets_status_once", func(t *testing.T) {
		s := NewState().ToggleSniff("")
		s = s.RequestObserved("t", "GET", "u", "", env).RequestObserved("t", "GET", "v", "", env)
		s = s.RequestCompleted("t", "u", 200)
		s = s.RequestObserved("t", "GET", "u", "", env)
		s = s.RequestCompleted("t", "u", 404)
		assert.Equal(t, []int{200, 0, 404}, []int{s.Requests[0].Status, s.Requests[1].Status, s.Requests[2].Status})
	})

	t.Run("bounded_log", func(t *testing.T) {
		s := NewState().ToggleSniff("")
		for i := 0; i < maxObservedRequests+10; i++ {
			s = s.RequestObserved("t", "GET", "u", "", env)
		}
		assert.Len(t, s.Requests, maxObservedRequests)
	})

	t.Run("clear", func(t *testing.T) {
		s := NewState().ToggleSniff("").RequestObserved("t", "GET", "u", "", env)
		assert.Empty(t, s.ClearRequests().Requests)
	})
}
