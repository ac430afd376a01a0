package cache_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/edumarques81/streamly-backend/internal/infra/cache"
)

func recentRow(id string, played time.Time) cache.RecentlyPlayed {
	return cache.RecentlyPlayed{
		VideoID:        id,
		Title:          "Title " + id,
		DisplayName:    id + ".mp4",
		Path:           "/media/" + id + ".mp4",
		URI:            "file:///media/" + id + ".mp4",
		Size:           2048,
		DurationMs:     90000,
		MimeType:       "video/mp4",
		FolderName:     "media",
		Width:          1920,
		Height:         1080,
		LastPlayedTime: played,
		PlayCount:      1,
	}
}

func TestRecentlyPlayedOrdering(t *testing.T) {
	_, dao := openTestDB(t)
	base := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		if err := dao.InsertRecentlyPlayed(recentRow(id, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}

	rows, err := dao.GetRecentlyPlayed(10)
	if err != nil {
		t.Fatalf("GetRecentlyPlayed failed: %v", err)
	}
	want := []string{"c", "b", "a"}
	if len(rows) != len(want) {
		t.Fatalf("Expected %d rows, got %d", len(want), len(rows))
	}
	for i, id := range want {
		if rows[i].VideoID != id {
			t.Errorf("rows[%d] = %s, want %s", i, rows[i].VideoID, id)
		}
	}

	limited, err := dao.GetRecentlyPlayed(2)
	if err != nil {
		t.Fatalf("GetRecentlyPlayed failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(limited))
	}
}

func TestRecentlyPlayedRoundTrip(t *testing.T) {
	_, dao := openTestDB(t)
	played := time.UnixMilli(time.Now().UnixMilli())
	row := recentRow("x", played)

	if err := dao.InsertRecentlyPlayed(row); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	got, err := dao.GetRecentlyPlayedVideo("x")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected a row")
	}
	if got.Title != row.Title || got.Path != row.Path || got.Width != 1920 || got.DurationMs != 90000 {
		t.Errorf("Unexpected row %+v", got)
	}
	if !got.LastPlayedTime.Equal(played) {
		t.Errorf("LastPlayedTime = %v, want %v", got.LastPlayedTime, played)
	}

	missing, err := dao.GetRecentlyPlayedVideo("nope")
	if err != nil {
		t.Fatalf("Get missing failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown video, got %+v", missing)
	}
}

func TestInsertRecentlyPlayedReplaces(t *testing.T) {
	_, dao := openTestDB(t)
	row := recentRow("x", time.Now())
	dao.InsertRecentlyPlayed(row)

	row.Title = "Renamed"
	row.PlayCount = 7
	if err := dao.InsertRecentlyPlayed(row); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	count, _ := dao.RecentlyPlayedCount()
	if count != 1 {
		t.Errorf("Expected 1 row, got %d", count)
	}
	got, _ := dao.GetRecentlyPlayedVideo("x")
	if got.Title != "Renamed" || got.PlayCount != 7 {
		t.Errorf("Row was not replaced: %+v", got)
	}
}

func TestRecordPlayIncrementsAndTrims(t *testing.T) {
	_, dao := openTestDB(t)
	base := time.Now()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("v%d", i)
		if _, err := dao.RecordPlay(recentRow(id, base.Add(time.Duration(i)*time.Second)), 3); err != nil {
			t.Fatalf("RecordPlay %s failed: %v", id, err)
		}
	}
	count, _ := dao.RecentlyPlayedCount()
	if count != 3 {
		t.Fatalf("Expected 3 rows after trim, got %d", count)
	}
	if old, _ := dao.GetRecentlyPlayedVideo("v0"); old != nil {
		t.Error("Oldest row should have been trimmed")
	}

	rec, err := dao.RecordPlay(recentRow("v4", base.Add(10*time.Second)), 3)
	if err != nil {
		t.Fatalf("RecordPlay failed: %v", err)
	}
	if rec.PlayCount != 2 {
		t.Errorf("Expected play count 2, got %d", rec.PlayCount)
	}
	stored, _ := dao.GetRecentlyPlayedVideo("v4")
	if stored.PlayCount != 2 {
		t.Errorf("Stored play count = %d, want 2", stored.PlayCount)
	}
}

func TestDeleteAndClearRecentlyPlayed(t *testing.T) {
	_, dao := openTestDB(t)
	dao.InsertRecentlyPlayed(recentRow("a", time.Now()))
	dao.InsertRecentlyPlayed(recentRow("b", time.Now()))

	if err := dao.DeleteRecentlyPlayed("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if count, _ := dao.RecentlyPlayedCount(); count != 1 {
		t.Errorf("Expected 1 row, got %d", count)
	}
	if err := dao.ClearRecentlyPlayed(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if count, _ := dao.RecentlyPlayedCount(); count != 0 {
		t.Errorf("Expected 0 rows, got %d", count)
	}
}

func TestLimitRecentlyPlayed(t *testing.T) {
	_, dao := openTestDB(t)
	base := time.Now()
	for i := 0; i < 4; i++ {
		dao.InsertRecentlyPlayed(recentRow(fmt.Sprintf("v%d", i), base.Add(time.Duration(i)*time.Second)))
	}
	if err := dao.LimitRecentlyPlayed(2); err != nil {
		t.Fatalf("Limit failed: %v", err)
	}
	rows, _ := dao.GetRecentlyPlayed(10)
	if len(rows) != 2 || rows[0].VideoID != "v3" || rows[1].VideoID != "v2" {
		t.Errorf("Unexpected rows after limit: %+v", rows)
	}
}

func TestMediaUpsertAndPrune(t *testing.T) {
	_, dao := openTestDB(t)
	added := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	records := []cache.MediaRecord{
		{ID: "m1", Path: "/m/a.mp4", Title: "a", DisplayName: "a.mp4", Size: 4096, DurationMs: 5000, Kind: "video", Width: 1280, Height: 720, FolderID: "f", FolderName: "m", DateAdded: added},
		{ID: "m2", Path: "/m/b.mp3", Title: "b", DisplayName: "b.mp3", Size: 4096, DurationMs: 7000, Kind: "audio", FolderID: "f", FolderName: "m", DateAdded: added.Add(time.Hour)},
	}
	if err := dao.UpsertMedia(records); err != nil {
		t.Fatalf("UpsertMedia failed: %v", err)
	}

	got, err := dao.GetMediaByPath("/m/a.mp4")
	if err != nil || got == nil {
		t.Fatalf("GetMediaByPath failed: %v %v", got, err)
	}
	if got.Width != 1280 || !got.DateAdded.Equal(added) {
		t.Errorf("Unexpected record %+v", got)
	}

	records[0].DurationMs = 6000
	records[0].DateAdded = added.Add(48 * time.Hour)
	if err := dao.UpsertMedia(records[:1]); err != nil {
		t.Fatalf("UpsertMedia update failed: %v", err)
	}
	got, _ = dao.GetMediaByPath("/m/a.mp4")
	if got.DurationMs != 6000 {
		t.Errorf("Expected updated duration, got %d", got.DurationMs)
	}
	if !got.DateAdded.Equal(added) {
		t.Error("DateAdded should keep the first-seen time")
	}

	all, _ := dao.ListMedia()
	if len(all) != 2 || all[0].ID != "m2" {
		t.Errorf("Expected newest first, got %+v", all)
	}

	removed, err := dao.PruneMedia(map[string]struct{}{"m1": {}})
	if err != nil {
		t.Fatalf("PruneMedia failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}
	if gone, _ := dao.GetMediaByPath("/m/b.mp3"); gone != nil {
		t.Error("Pruned record should be gone")
	}
}
