package adapters

import (
	"path"
	"sort"
	"strings"

	"catalog-sync/internal/models"
)

// parsePhotos reads the photo list from "photos" or "images". Entries may
// be bare URL strings or objects.
func parsePhotos(f map[string]interface{}) []models.Photo {
	var raw []interface{}
	for _, key := range []string{"photos", "images"} {
		if arr, ok := f[key].([]interface{}); ok {
			raw = arr
			break
		}
	}

	photos := make([]models.Photo, 0, len(raw))
	for _, e := range raw {
		switch t := e.(type) {
		case string:
			if t != "" {
				photos = append(photos, models.Photo{URL: t, Angle: "unknown"})
			}
		case map[string]interface{}:
			url := stringField(t, "url", "src")
			if url == "" {
				continue
			}
			photos = append(photos, models.Photo{
				URL:          url,
				Label:        stringField(t, "label", "alt"),
				Angle:        coerceAngle(stringField(t, "angle", "view")),
				ColorwayName: stringField(t, "colorwayName", "colorway"),
				Source:       stringField(t, "source"),
			})
		}
	}
	return photos
}

// normalizePhotos applies the adapter's URL heuristic, de-duplicates by
// basename, elects at most one hero, and orders the result hero-first
// then by angle precedence then by original position.
func (a *baseAdapter) normalizePhotos(photos []models.Photo) []models.Photo {
	type indexed struct {
		photo models.Photo
		pos   int
	}

	seen := make(map[string]bool)
	kept := make([]indexed, 0, len(photos))
	for i, p := range photos {
		if a.photoFilter != nil && !a.photoFilter(p.URL) {
			continue
		}
		base := strings.ToLower(path.Base(p.URL))
		if seen[base] {
			continue
		}
		seen[base] = true
		p.IsHero = false
		kept = append(kept, indexed{photo: p, pos: i})
	}
	if len(kept) == 0 {
		return nil
	}

	hero := 0
	for i, k := range kept {
		if k.photo.Angle == "front" {
			hero = i
			break
		}
	}
	kept[hero].photo.IsHero = true

	rank := func(angle string) int {
		for i, a := range models.PhotoAngleOrder {
			if angle == a {
				return i
			}
		}
		return len(models.PhotoAngleOrder)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].photo.IsHero != kept[j].photo.IsHero {
			return kept[i].photo.IsHero
		}
		ri, rj := rank(kept[i].photo.Angle), rank(kept[j].photo.Angle)
		if ri != rj {
			return ri < rj
		}
		return kept[i].pos < kept[j].pos
	})

	out := make([]models.Photo, len(kept))
	for i, k := range kept {
		out[i] = k.photo
	}
	return out
}
