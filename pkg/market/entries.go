package market

import (
	"encoding/json"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
)

// Kind names one of the lookup tables.
type Kind string

const (
	KindCountries   Kind = "countries"
	KindCollections Kind = "collections"
	KindCategories  Kind = "categories"
)

// Names returns the sorted keys of the table named by kind.
func Names(kind Kind) ([]string, error) {
	switch kind {
	case KindCountries:
		return CountryCodes(), nil
	case KindCollections:
		return CollectionNames(), nil
	case KindCategories:
		return CategoryNames(), nil
	}
	return nil, apperrors.New(apperrors.ErrCodeInvalidDescriptor, "unknown table %q", kind)
}

// Entries renders a table's names as a JSON object of the form
// {"names": [...]}.
func Entries(kind Kind) (string, error) {
	names, err := Names(kind)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(struct {
		Names []string `json:"names"`
	}{names})
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeInternal, err, "encode %s", kind)
	}
	return string(data), nil
}
