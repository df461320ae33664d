// Package video extracts video identifiers from the URL shapes a viewer may
// paste or a page may report.
package video

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/naveenspark/sidechat/pkg/domain"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidID reports whether s looks like a video id.
func ValidID(s string) bool { return idPattern.MatchString(s) }

// ParseID returns the video id in s: a bare id, a watch URL (?v=), a short
// link (youtu.be/<id>) or a /shorts/, /live/ or /embed/ path.
func ParseID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if ValidID(s) {
		return s, true
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}

	if v := u.Query().Get("v"); v != "" {
		return check(v)
	}
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "youtu.be" && len(parts) > 0 {
		return check(parts[0])
	}
	if len(parts) >= 2 {
		switch parts[0] {
		case "shorts", "live", "embed":
			return check(parts[1])
		}
	}
	return "", false
}

func check(id string) (string, bool) {
	if !ValidID(id) {
		return "", false
	}
	return id, true
}

// WatchURL is the canonical page for id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}

// ThumbnailURL is the preview image for id.
func ThumbnailURL(id string) string {
	return "https://i.ytimg.com/vi/" + url.PathEscape(id) + "/hqdefault.jpg"
}

// Metadata describes id for a newly created room.
func Metadata(id string) domain.RoomMetadata {
	return domain.RoomMetadata{ThumbnailURL: ThumbnailURL(id)}
}
