package market

import (
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
)

// Collection is an App Store chart identifier as used in RSS feed URLs.
type Collection string

// Known collections.
const (
	TopMac            Collection = "topmacapps"
	TopFreeMac        Collection = "topfreemacapps"
	TopGrossingMac    Collection = "topgrossingmacapps"
	TopPaidMac        Collection = "toppaidmacapps"
	NewIOS            Collection = "newapplications"
	NewFreeIOS        Collection = "newfreeapplications"
	NewPaidIOS        Collection = "newpaidapplications"
	TopFreeIOS        Collection = "topfreeapplications"
	TopFreeIPad       Collection = "topfreeipadapplications"
	TopGrossingIOS    Collection = "topgrossingapplications"
	TopGrossingIPad   Collection = "topgrossingipadapplications"
	TopPaidIOS        Collection = "toppaidapplications"
	TopPaidIPad       Collection = "toppaidipadapplications"
	DefaultCollection            = TopFreeIOS
)

var collections = map[string]Collection{
	"TOP_MAC":           TopMac,
	"TOP_FREE_MAC":      TopFreeMac,
	"TOP_GROSSING_MAC":  TopGrossingMac,
	"TOP_PAID_MAC":      TopPaidMac,
	"NEW_IOS":           NewIOS,
	"NEW_FREE_IOS":      NewFreeIOS,
	"NEW_PAID_IOS":      NewPaidIOS,
	"TOP_FREE_IOS":      TopFreeIOS,
	"TOP_FREE_IPAD":     TopFreeIPad,
	"TOP_GROSSING_IOS":  TopGrossingIOS,
	"TOP_GROSSING_IPAD": TopGrossingIPad,
	"TOP_PAID_IOS":      TopPaidIOS,
	"TOP_PAID_IPAD":     TopPaidIPad,
}

// Category is an App Store genre ID.
type Category int

// NoCategory leaves the genre out of a collection request.
const NoCategory Category = 0

var categories = map[string]Category{
	"BOOKS":                         6018,
	"BUSINESS":                      6000,
	"CATALOGS":                      6022,
	"DEVELOPER_TOOLS":               6026,
	"EDUCATION":                     6017,
	"ENTERTAINMENT":                 6016,
	"FINANCE":                       6015,
	"FOOD_AND_DRINK":                6023,
	"GAMES":                         6014,
	"GAMES_ACTION":                  7001,
	"GAMES_ADVENTURE":               7002,
	"GAMES_ARCADE":                  7003,
	"GAMES_BOARD":                   7004,
	"GAMES_CARD":                    7005,
	"GAMES_CASINO":                  7006,
	"GAMES_DICE":                    7007,
	"GAMES_EDUCATIONAL":             7008,
	"GAMES_FAMILY":                  7009,
	"GAMES_MUSIC":                   7011,
	"GAMES_PUZZLE":                  7012,
	"GAMES_RACING":                  7013,
	"GAMES_ROLE_PLAYING":            7014,
	"GAMES_SIMULATION":              7015,
	"GAMES_SPORTS":                  7016,
	"GAMES_STRATEGY":                7017,
	"GAMES_TRIVIA":                  7018,
	"GAMES_WORD":                    7019,
	"GRAPHICS_AND_DESIGN":           6027,
	"HEALTH_AND_FITNESS":            6013,
	"LIFESTYLE":                     6012,
	"MAGAZINES_AND_NEWSPAPERS":      6021,
	"MAGAZINES_ARTS":                13007,
	"MAGAZINES_AUTOMOTIVE":          13006,
	"MAGAZINES_BRIDES_AND_WEDDINGS": 13008,
	"MAGAZINES_BUSINESS":            13009,
	"MAGAZINES_CHILDREN":            13010,
	"MAGAZINES_COMPUTER":            13011,
	"MAGAZINES_COOKING":             13012,
	"MAGAZINES_FASHION":             13013,
	"MAGAZINES_HEALTH":              13017,
	"MAGAZINES_NEWS":                13025,
	"MAGAZINES_SCIENCE":             13027,
	"MAGAZINES_SPORTS":              13028,
	"MAGAZINES_TRAVEL":              13029,
	"MEDICAL":                       6020,
	"MUSIC":                         6011,
	"NAVIGATION":                    6010,
	"NEWS":                          6009,
	"PHOTO_AND_VIDEO":               6008,
	"PRODUCTIVITY":                  6007,
	"REFERENCE":                     6006,
	"SHOPPING":                      6024,
	"SOCIAL_NETWORKING":             6005,
	"SPORTS":                        6004,
	"STICKERS":                      6025,
	"TRAVEL":                        6003,
	"UTILITIES":                     6002,
	"WEATHER":                       6001,
}

// normalizeName maps "top free ios", "top-free-ios" and "TOP_FREE_IOS" to
// the same table key.
func normalizeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

// LookupCollection finds a collection by its constant name (e.g.
// "TOP_FREE_IOS") or by its identifier (e.g. "topfreeapplications").
func LookupCollection(name string) (Collection, bool) {
	if c, ok := collections[normalizeName(name)]; ok {
		return c, true
	}
	for _, c := range collections {
		if string(c) == strings.TrimSpace(name) {
			return c, true
		}
	}
	return "", false
}

// ResolveCollection is LookupCollection with the default applied to the
// empty name and an INVALID_DESCRIPTOR error for unknown names.
func ResolveCollection(name string) (Collection, error) {
	if strings.TrimSpace(name) == "" {
		return DefaultCollection, nil
	}
	if c, ok := LookupCollection(name); ok {
		return c, nil
	}
	return "", apperrors.New(apperrors.ErrCodeInvalidDescriptor, "unknown collection %q", name)
}

// LookupCategory finds a category by its constant name (e.g. "BOOKS") or by
// its numeric genre ID given as a string (e.g. "6018").
func LookupCategory(name string) (Category, bool) {
	if c, ok := categories[normalizeName(name)]; ok {
		return c, true
	}
	if n, err := strconv.Atoi(strings.TrimSpace(name)); err == nil {
		if _, ok := lo.FindKeyBy(categories, func(_ string, c Category) bool { return int(c) == n }); ok {
			return Category(n), true
		}
	}
	return NoCategory, false
}

// ResolveCategory is LookupCategory with the empty name meaning
// [NoCategory] and an INVALID_DESCRIPTOR error for unknown names.
func ResolveCategory(name string) (Category, error) {
	if strings.TrimSpace(name) == "" {
		return NoCategory, nil
	}
	if c, ok := LookupCategory(name); ok {
		return c, nil
	}
	return NoCategory, apperrors.New(apperrors.ErrCodeInvalidDescriptor, "unknown category %q", name)
}

// KnownCollection reports whether c is one of the table's identifiers.
func KnownCollection(c Collection) bool {
	return lo.Contains(lo.Values(collections), c)
}

// KnownCategory reports whether c is NoCategory or one of the table's IDs.
func KnownCategory(c Category) bool {
	return c == NoCategory || lo.Contains(lo.Values(categories), c)
}

// CollectionNames returns the collection constant names in ascending order.
func CollectionNames() []string {
	names := lo.Keys(collections)
	slices.Sort(names)
	return names
}

// CategoryNames returns the category constant names in ascending order.
func CategoryNames() []string {
	names := lo.Keys(categories)
	slices.Sort(names)
	return names
}
