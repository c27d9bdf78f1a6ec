package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	yt "google.golang.org/api/youtube/v3"

	"postcast/internal/retry"
	"postcast/internal/services"
)

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		Sleeper:     func(time.Duration) {},
	}
}

func newTestClient(t *testing.T, cfg Config, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	client, err := New(context.Background(), cfg, server.Client(), testPolicy(), nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func searchItem(id, title, publishedAt string) map[string]any {
	return map[string]any{
		"id": map[string]any{"videoId": id},
		"snippet": map[string]any{
			"title":       title,
			"description": "desc de " + id,
			"channelId":   "UCabc",
			"publishedAt": publishedAt,
		},
	}
}

func encode(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":"denied","errors":[{"reason":%q,"domain":"youtube.quota"}]}}`, code, reason)
}

func TestRecentUploadsQueriesChannel(t *testing.T) {
	var query url.Values
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		query = r.URL.Query()
		encode(t, w, map[string]any{
			"items": []map[string]any{
				searchItem("vid1", "G33K TEAM - S1E30 | Docker", "2026-08-20T18:00:00Z"),
				{"id": map[string]any{"videoId": ""}},
			},
		})
	}))

	since := time.Date(2026, 7, 25, 12, 0, 0, 0, time.UTC)
	videos, err := client.RecentUploads(context.Background(), since, 10)
	if err != nil {
		t.Fatalf("RecentUploads returned error: %v", err)
	}

	if got := query.Get("channelId"); got != "UCabc" {
		t.Errorf("channelId: got %q", got)
	}
	if got := query.Get("type"); got != "video" {
		t.Errorf("type: got %q", got)
	}
	if got := query.Get("order"); got != "date" {
		t.Errorf("order: got %q", got)
	}
	if got := query.Get("maxResults"); got != "10" {
		t.Errorf("maxResults: got %q", got)
	}
	if got := query.Get("publishedAfter"); got != "2026-07-25T12:00:00Z" {
		t.Errorf("publishedAfter: got %q", got)
	}
	if got := query.Get("part"); got != "snippet" {
		t.Errorf("part: got %q", got)
	}

	if len(videos) != 1 {
		t.Fatalf("videos: got %d, want 1 (the id-less item is skipped)", len(videos))
	}
	want := Video{
		ID:          "vid1",
		Title:       "G33K TEAM - S1E30 | Docker",
		Description: "desc de vid1",
		ChannelID:   "UCabc",
		PublishedAt: time.Date(2026, 8, 20, 18, 0, 0, 0, time.UTC),
	}
	if videos[0].ID != want.ID || videos[0].Title != want.Title || videos[0].Description != want.Description {
		t.Errorf("video: got %+v, want %+v", videos[0], want)
	}
	if !videos[0].PublishedAt.Equal(want.PublishedAt) {
		t.Errorf("PublishedAt: got %v, want %v", videos[0].PublishedAt, want.PublishedAt)
	}
}

func TestRecentUploadsSkipsLiveBroadcasts(t *testing.T) {
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		live := searchItem("vid-live", "en directo", "2026-08-21T18:00:00Z")
		live["snippet"].(map[string]any)["liveBroadcastContent"] = "live"
		upcoming := searchItem("vid-soon", "programado", "2026-08-22T18:00:00Z")
		upcoming["snippet"].(map[string]any)["liveBroadcastContent"] = "upcoming"
		encode(t, w, map[string]any{
			"items": []map[string]any{
				live,
				upcoming,
				searchItem("vid1", "publicado", "2026-08-20T18:00:00Z"),
			},
		})
	}))

	videos, err := client.RecentUploads(context.Background(), time.Time{}, 10)
	if err != nil {
		t.Fatalf("RecentUploads returned error: %v", err)
	}
	if len(videos) != 1 || videos[0].ID != "vid1" {
		t.Fatalf("videos: got %+v, want only vid1", videos)
	}
}

func TestRecentUploadsPaginates(t *testing.T) {
	var pageTokens, pageSizes []string
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		pageTokens = append(pageTokens, query.Get("pageToken"))
		pageSizes = append(pageSizes, query.Get("maxResults"))
		if query.Has("publishedAfter") {
			t.Error("zero since should not send publishedAfter")
		}
		if len(pageTokens) == 1 {
			encode(t, w, map[string]any{
				"nextPageToken": "page-2",
				"items": []map[string]any{
					searchItem("vid1", "uno", "2026-08-20T18:00:00Z"),
					searchItem("vid2", "dos", "2026-08-19T18:00:00Z"),
				},
			})
			return
		}
		encode(t, w, map[string]any{
			"items": []map[string]any{searchItem("vid3", "tres", "2026-08-18T18:00:00Z")},
		})
	}))

	videos, err := client.RecentUploads(context.Background(), time.Time{}, 3)
	if err != nil {
		t.Fatalf("RecentUploads returned error: %v", err)
	}
	if len(videos) != 3 {
		t.Fatalf("videos: got %d, want 3", len(videos))
	}
	if len(pageTokens) != 2 || pageTokens[0] != "" || pageTokens[1] != "page-2" {
		t.Errorf("page tokens: got %v", pageTokens)
	}
	if pageSizes[0] != "3" || pageSizes[1] != "1" {
		t.Errorf("page sizes: got %v", pageSizes)
	}
}

func TestRecentUploadsRetriesServerErrors(t *testing.T) {
	var calls int
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		encode(t, w, map[string]any{
			"items": []map[string]any{searchItem("vid1", "uno", "2026-08-20T18:00:00Z")},
		})
	}))

	videos, err := client.RecentUploads(context.Background(), time.Time{}, 5)
	if err != nil {
		t.Fatalf("RecentUploads returned error: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("videos: got %d, want 1", len(videos))
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2 (one failure, one retry)", calls)
	}
}

func TestRecentUploadsQuotaExhaustionIsPermanent(t *testing.T) {
	var calls int
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeAPIError(w, http.StatusForbidden, "quotaExceeded")
	}))

	_, err := client.RecentUploads(context.Background(), time.Time{}, 5)
	if !errors.Is(err, services.ErrExternalAPI) {
		t.Fatalf("expected external API error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1 (daily quota exhaustion must not retry)", calls)
	}
}

func TestRecentUploadsRateLimitRetries(t *testing.T) {
	var calls int
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeAPIError(w, http.StatusForbidden, "rateLimitExceeded")
			return
		}
		encode(t, w, map[string]any{
			"items": []map[string]any{searchItem("vid1", "uno", "2026-08-20T18:00:00Z")},
		})
	}))

	if _, err := client.RecentUploads(context.Background(), time.Time{}, 5); err != nil {
		t.Fatalf("RecentUploads returned error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2 (per-minute rate limits retry)", calls)
	}
}

func TestRecentUploadsRequiresChannel(t *testing.T) {
	var calls int
	client := newTestClient(t, Config{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	_, err := client.RecentUploads(context.Background(), time.Time{}, 5)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls != 0 {
		t.Errorf("calls: got %d, want 0", calls)
	}
}

func TestLatestUploadEmptyChannelIsNotFound(t *testing.T) {
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encode(t, w, map[string]any{"items": []map[string]any{}})
	}))

	_, err := client.LatestUpload(context.Background())
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestVideoReportsRunningBroadcast(t *testing.T) {
	var parts []string
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts = r.URL.Query()["part"]
		encode(t, w, map[string]any{
			"items": []map[string]any{{
				"id": "vid1",
				"snippet": map[string]any{
					"title":                "stream en curso",
					"liveBroadcastContent": "none",
				},
				"liveStreamingDetails": map[string]any{
					"actualStartTime": "2026-08-20T18:00:00Z",
				},
			}},
		})
	}))

	video, err := client.Video(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("Video returned error: %v", err)
	}
	if !video.Live {
		t.Error("a broadcast without an end time should report Live")
	}
	if len(parts) != 2 || parts[0] != "snippet" || parts[1] != "liveStreamingDetails" {
		t.Errorf("requested parts: got %v", parts)
	}
}

func TestVideoNotFound(t *testing.T) {
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encode(t, w, map[string]any{"items": []map[string]any{}})
	}))

	_, err := client.Video(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestUpdateSnippetPreservesCategoryAndTags(t *testing.T) {
	var update yt.Video
	var putQuery url.Values
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/youtube/v3/videos":
			encode(t, w, map[string]any{
				"items": []map[string]any{{
					"id": "vid1",
					"snippet": map[string]any{
						"title":                "título viejo",
						"description":          "descripción vieja",
						"channelId":            "UCabc",
						"categoryId":           "28",
						"tags":                 []string{"tech", "podcast"},
						"defaultAudioLanguage": "es",
					},
				}},
			})
		case r.Method == http.MethodPut && r.URL.Path == "/youtube/v3/videos":
			putQuery = r.URL.Query()
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				t.Errorf("decode update body: %v", err)
			}
			encode(t, w, update)
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	}))

	err := client.UpdateSnippet(context.Background(), "vid1", "Nuevo título", "Nueva descripción")
	if err != nil {
		t.Fatalf("UpdateSnippet returned error: %v", err)
	}

	if got := putQuery.Get("part"); got != "snippet" {
		t.Errorf("update part: got %q", got)
	}
	if update.Id != "vid1" {
		t.Errorf("update id: got %q", update.Id)
	}
	if update.Snippet == nil {
		t.Fatal("update carried no snippet")
	}
	if update.Snippet.Title != "Nuevo título" || update.Snippet.Description != "Nueva descripción" {
		t.Errorf("snippet text: got %q / %q", update.Snippet.Title, update.Snippet.Description)
	}
	if update.Snippet.CategoryId != "28" {
		t.Errorf("categoryId was not preserved: got %q", update.Snippet.CategoryId)
	}
	if len(update.Snippet.Tags) != 2 || update.Snippet.Tags[0] != "tech" {
		t.Errorf("tags were not preserved: got %v", update.Snippet.Tags)
	}
	if update.Snippet.DefaultAudioLanguage != "es" {
		t.Errorf("defaultAudioLanguage was not preserved: got %q", update.Snippet.DefaultAudioLanguage)
	}
}

func TestUpdateSnippetTruncatesTitle(t *testing.T) {
	var update yt.Video
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			encode(t, w, map[string]any{
				"items": []map[string]any{{"id": "vid1", "snippet": map[string]any{"title": "viejo"}}},
			})
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				t.Errorf("decode update body: %v", err)
			}
			encode(t, w, update)
		}
	}))

	long := strings.Repeat("á", 130)
	if err := client.UpdateSnippet(context.Background(), "vid1", long, "desc"); err != nil {
		t.Fatalf("UpdateSnippet returned error: %v", err)
	}

	title := update.Snippet.Title
	if got := len([]rune(title)); got != 100 {
		t.Errorf("title length: got %d runes, want 100", got)
	}
	if !strings.HasSuffix(title, "...") {
		t.Errorf("truncated title should end in an ellipsis, got %q", title)
	}
}

func TestSetThumbnailUploadsMedia(t *testing.T) {
	image := bytes.Repeat([]byte{0xFF, 0xD8, 0xAB, 0x42}, 64)
	var body []byte
	var query url.Values
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload/youtube/v3/thumbnails/set" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		query = r.URL.Query()
		var err error
		if body, err = io.ReadAll(r.Body); err != nil {
			t.Errorf("read upload body: %v", err)
		}
		encode(t, w, map[string]any{"kind": "youtube#thumbnailSetResponse"})
	}))

	if err := client.SetThumbnail(context.Background(), "vid1", image); err != nil {
		t.Fatalf("SetThumbnail returned error: %v", err)
	}

	if got := query.Get("videoId"); got != "vid1" {
		t.Errorf("videoId: got %q", got)
	}
	if got := query.Get("uploadType"); got != "multipart" {
		t.Errorf("uploadType: got %q", got)
	}
	if !bytes.Contains(body, image) {
		t.Error("upload body does not carry the image bytes")
	}
	if !strings.Contains(string(body), "image/jpeg") {
		t.Error("upload body does not declare the jpeg content type")
	}
}

func TestSetThumbnailRejectsOversizedImage(t *testing.T) {
	var calls int
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	err := client.SetThumbnail(context.Background(), "vid1", make([]byte, maxThumbnailBytes+1))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls != 0 {
		t.Errorf("oversized image must fail before any quota is spent, got %d calls", calls)
	}
}

func TestUpsertCaptionReplacesExistingTrack(t *testing.T) {
	var deletedIDs []string
	var insertBody []byte
	var insertQuery url.Values
	client := newTestClient(t, Config{ChannelID: "UCabc", CaptionLanguage: "es"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/youtube/v3/captions":
			if got := r.URL.Query().Get("videoId"); got != "vid1" {
				t.Errorf("captions list videoId: got %q", got)
			}
			encode(t, w, map[string]any{
				"items": []map[string]any{
					{"id": "cap-es", "snippet": map[string]any{"videoId": "vid1", "language": "es", "name": "ES"}},
					{"id": "cap-en", "snippet": map[string]any{"videoId": "vid1", "language": "en", "name": "EN"}},
				},
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/youtube/v3/captions":
			deletedIDs = append(deletedIDs, r.URL.Query().Get("id"))
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/upload/youtube/v3/captions":
			insertQuery = r.URL.Query()
			var err error
			if insertBody, err = io.ReadAll(r.Body); err != nil {
				t.Errorf("read insert body: %v", err)
			}
			encode(t, w, map[string]any{"id": "cap-new"})
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	}))

	srt := "1\n00:00:00,000 --> 00:00:02,000\nHola a todos\n"
	if err := client.UpsertCaption(context.Background(), "vid1", srt); err != nil {
		t.Fatalf("UpsertCaption returned error: %v", err)
	}

	if len(deletedIDs) != 1 || deletedIDs[0] != "cap-es" {
		t.Errorf("deleted tracks: got %v, want only the es track", deletedIDs)
	}
	if got := insertQuery.Get("part"); got != "snippet" {
		t.Errorf("insert part: got %q", got)
	}

	body := string(insertBody)
	if !strings.Contains(body, `"isDraft":false`) {
		t.Error("insert body must publish the track, isDraft:false missing")
	}
	if !strings.Contains(body, "ES (Generado automáticamente)") {
		t.Error("insert body does not carry the default track name")
	}
	if !strings.Contains(body, "Hola a todos") {
		t.Error("insert body does not carry the SRT payload")
	}
}

func TestUpsertCaptionRejectsEmptyPayload(t *testing.T) {
	var calls int
	client := newTestClient(t, Config{ChannelID: "UCabc"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	err := client.UpsertCaption(context.Background(), "vid1", "   \n")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls != 0 {
		t.Errorf("calls: got %d, want 0", calls)
	}
}
