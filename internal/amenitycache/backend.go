package amenitycache

import (
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
)

// Backend persists the full key to amenity-list map.
type Backend interface {
	// Load returns every stored entry. A store that does not exist yet
	// yields an empty map, not an error.
	Load(ctx context.Context) (map[geo.Key][]model.Amenity, error)
	// Save persists entries. Keys absent from entries are left untouched.
	Save(ctx context.Context, entries map[geo.Key][]model.Amenity) error
}

// decodeDocument reads the JSON cache document {"(lat, lon)": [amenity, ...]}.
func decodeDocument(r io.Reader) (map[geo.Key][]model.Amenity, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		if eris.Is(err, io.EOF) {
			return map[geo.Key][]model.Amenity{}, nil
		}
		return nil, eris.Wrap(err, "amenitycache: decode document")
	}

	out := make(map[geo.Key][]model.Amenity, len(raw))
	for text, msg := range raw {
		key, err := geo.ParseKey(text)
		if err != nil {
			return nil, eris.Wrapf(err, "amenitycache: entry %q", text)
		}
		amenities, err := decodeAmenities(text, msg)
		if err != nil {
			return nil, err
		}
		out[key] = amenities
	}
	return out, nil
}

// encodeDocument writes entries as an indented JSON document with sorted keys.
func encodeDocument(w io.Writer, entries map[geo.Key][]model.Amenity) error {
	doc := make(map[string][]model.Amenity, len(entries))
	for k, v := range entries {
		if v == nil {
			v = []model.Amenity{}
		}
		doc[k.String()] = v
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(doc), "amenitycache: encode document")
}

// decodeAmenities parses one stored amenity list. Records written before
// categories were persisted get theirs derived from the tags.
func decodeAmenities(key string, raw []byte) ([]model.Amenity, error) {
	var amenities []model.Amenity
	if err := json.Unmarshal(raw, &amenities); err != nil {
		return nil, eris.Wrapf(err, "amenitycache: entry %q: decode amenities", key)
	}
	if amenities == nil {
		return []model.Amenity{}, nil
	}
	for i := range amenities {
		a := &amenities[i]
		a.Name = orNA(a.Name)
		a.AmenityTag = orNA(a.AmenityTag)
		a.ShopTag = orNA(a.ShopTag)
		if a.Category == "" {
			a.Category = model.Classify(a.AmenityTag, a.ShopTag)
		}
	}
	return amenities, nil
}

func encodeAmenities(amenities []model.Amenity) ([]byte, error) {
	if amenities == nil {
		amenities = []model.Amenity{}
	}
	b, err := json.Marshal(amenities)
	return b, eris.Wrap(err, "amenitycache: encode amenities")
}

func orNA(s string) string {
	if s == "" {
		return model.NotAvailable
	}
	return s
}

func sortedKeys(entries map[geo.Key][]model.Amenity) []geo.Key {
	keys := make([]geo.Key, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Lat != keys[j].Lat {
			return keys[i].Lat < keys[j].Lat
		}
		return keys[i].Lon < keys[j].Lon
	})
	return keys
}
