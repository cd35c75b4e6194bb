package itunes

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
)

// AppID identifies an app either by its numeric track ID or by its bundle
// identifier. Exactly one of the two is set.
type AppID struct {
	track  int64
	bundle string
}

// TrackID returns an AppID for a numeric track ID.
func TrackID(id int64) AppID { return AppID{track: id} }

// BundleID returns an AppID for a bundle identifier such as "com.example.app".
func BundleID(id string) AppID { return AppID{bundle: id} }

// ParseAppID tries s as a track ID first and falls back to a bundle
// identifier. Empty input, or text that is neither a positive number nor a
// reverse-DNS bundle ID, is an INVALID_INPUT error.
func ParseAppID(s string) (AppID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AppID{}, apperrors.New(apperrors.ErrCodeInvalidInput, "app ID cannot be empty")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return TrackID(n), nil
	}
	if err := apperrors.ValidateBundleID(s); err != nil {
		return AppID{}, err
	}
	return BundleID(s), nil
}

// IsZero reports whether id holds neither a track nor a bundle ID.
func (id AppID) IsZero() bool { return id.track <= 0 && id.bundle == "" }

// IsNumeric reports whether id is a track ID.
func (id AppID) IsNumeric() bool { return id.track > 0 }

// Track returns the numeric track ID, or 0 for bundle identifiers.
func (id AppID) Track() int64 { return id.track }

func (id AppID) String() string {
	if id.IsNumeric() {
		return strconv.FormatInt(id.track, 10)
	}
	return id.bundle
}

// query returns the lookup query pair for id.
func (id AppID) query() string {
	if id.IsNumeric() {
		return "id=" + id.String()
	}
	return "bundleId=" + url.QueryEscape(id.bundle)
}

// TrackIDs converts numeric IDs, as returned by the listing operations.
func TrackIDs(ids []int64) []AppID {
	return lo.Map(ids, func(id int64, _ int) AppID { return TrackID(id) })
}
