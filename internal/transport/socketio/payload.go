package socketio

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

// payload returns the first event argument as an object, or an empty map.
func payload(args []interface{}) map[string]interface{} {
	if len(args) > 0 {
		if m, ok := args[0].(map[string]interface{}); ok {
			return m
		}
	}
	return map[string]interface{}{}
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func num(m map[string]interface{}, key string) (float64, bool) {
	v, ok := m[key].(float64)
	return v, ok
}

func intOr(m map[string]interface{}, key string, def int) int {
	if v, ok := num(m, key); ok {
		return int(v)
	}
	return def
}

func boolean(m map[string]interface{}, key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

func millis(m map[string]interface{}, key string) (time.Duration, bool) {
	v, ok := num(m, key)
	if !ok {
		return 0, false
	}
	return time.Duration(v) * time.Millisecond, true
}

func strs(m map[string]interface{}, key string) []string {
	raw, _ := m[key].([]interface{})
	return lo.FilterMap(raw, func(v interface{}, _ int) (string, bool) {
		s, ok := v.(string)
		return s, ok && s != ""
	})
}

// decode converts a decoded JSON object into a typed value.
func decode(v interface{}, out interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// itemJSON is the wire form of a media item. Durations travel in ms.
func itemJSON(item media.Item) map[string]interface{} {
	out := map[string]interface{}{
		"id":                item.ID,
		"title":             item.SortTitle(),
		"displayName":       item.DisplayName,
		"path":              item.Path,
		"size":              item.Size,
		"formattedSize":     item.FormattedSize(),
		"duration":          item.Duration.Milliseconds(),
		"formattedDuration": item.FormattedDuration(),
		"mimeType":          item.MimeType,
		"kind":              string(item.Kind),
		"folderId":          item.FolderID,
		"folderName":        item.FolderName,
		"width":             item.Width,
		"height":            item.Height,
		"resolution":        item.Resolution(),
		"dateAdded":         item.DateAdded.UnixMilli(),
		"thumbnail":         "/thumbnail?id=" + item.ID,
	}
	if !item.LastPlayed.IsZero() {
		out["lastPlayed"] = item.LastPlayed.UnixMilli()
		out["playCount"] = item.PlayCount
	}
	return out
}

func itemsJSON(items []media.Item) []map[string]interface{} {
	return lo.Map(items, func(item media.Item, _ int) map[string]interface{} {
		return itemJSON(item)
	})
}

func folderJSON(f media.Folder) map[string]interface{} {
	out := map[string]interface{}{
		"id":            f.ID,
		"name":          f.Name,
		"path":          f.Path,
		"count":         f.Count,
		"totalSize":     f.TotalSize,
		"formattedSize": f.FormattedSize(),
		"lastModified":  f.LastModified.UnixMilli(),
	}
	if f.Thumbnail != "" {
		out["thumbnail"] = "/thumbnail?id=" + f.Thumbnail
	}
	return out
}

func foldersJSON(folders []media.Folder) []map[string]interface{} {
	return lo.Map(folders, func(f media.Folder, _ int) map[string]interface{} {
		return folderJSON(f)
	})
}
