// Package assets carries the static asset table: the mapping between
// asset tickers and the numeric active ids the venue's option operations
// take. The table is embedded; it covers the commonly traded actives and
// is not a live instrument feed.
package assets

import (
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

//go:embed assets.json
var rawAssets []byte

// Asset is one tradable active.
type Asset struct {
	ID     int64  `json:"id"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	// OTC actives stay quoted over weekends.
	OTC bool `json:"otc,omitempty"`
}

// ErrUnknownAsset is returned by the lookup helpers.
var ErrUnknownAsset = errors.New("unknown asset")

var (
	assets   []Asset
	byTicker map[string]Asset
	byID     map[int64]Asset
)

func init() {
	if err := json.Unmarshal(rawAssets, &assets); err != nil {
		panic(errors.Wrap(err, "embedded asset table"))
	}
	byTicker = make(map[string]Asset, len(assets))
	byID = make(map[int64]Asset, len(assets))
	for _, a := range assets {
		byTicker[a.Ticker] = a
		byID[a.ID] = a
	}
}

// Find looks an asset up by ticker, case-insensitively.
func Find(ticker string) (Asset, error) {
	a, ok := byTicker[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return Asset{}, errors.Wrapf(ErrUnknownAsset, "%q", ticker)
	}
	return a, nil
}

// FindByID looks an asset up by its numeric active id.
func FindByID(id int64) (Asset, error) {
	a, ok := byID[id]
	if !ok {
		return Asset{}, errors.Wrapf(ErrUnknownAsset, "id %d", id)
	}
	return a, nil
}

// All returns a copy of the table.
func All() []Asset {
	out := make([]Asset, len(assets))
	copy(out, assets)
	return out
}
