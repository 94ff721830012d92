package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Zone is a classified region of a page. Every ratio is relative to the page
// dimensions and lies in [0,1].
type Zone struct {
	Type        ZoneType `json:"type"`
	XRatio      float64  `json:"x_ratio"`
	YRatio      float64  `json:"y_ratio"`
	WidthRatio  float64  `json:"width_ratio"`
	HeightRatio float64  `json:"height_ratio"`
	AreaRatio   float64  `json:"area_ratio"`
}

// Vector returns the zone's ratios as the tuple used for distance comparison.
func (z Zone) Vector() [5]float64 {
	return [5]float64{z.XRatio, z.YRatio, z.WidthRatio, z.HeightRatio, z.AreaRatio}
}

// Fingerprint is a scale-invariant geometric signature of a page. Zones are
// sorted by YRatio ascending.
type Fingerprint struct {
	ImageWidth            int     `json:"image_width"`
	ImageHeight           int     `json:"image_height"`
	Zones                 []Zone  `json:"zones"`
	ZoneCount             int     `json:"zone_count"`
	TotalContentAreaRatio float64 `json:"total_content_area_ratio"`
}

// IsEmpty reports whether the fingerprint has no zones.
func (f *Fingerprint) IsEmpty() bool {
	return f == nil || len(f.Zones) == 0
}

// FirstOfType returns the first zone of the given type in y order.
func (f *Fingerprint) FirstOfType(t ZoneType) (Zone, bool) {
	if f == nil {
		return Zone{}, false
	}
	for _, z := range f.Zones {
		if z.Type == t {
			return z, true
		}
	}
	return Zone{}, false
}

// Value implements driver.Valuer.
func (f Fingerprint) Value() (driver.Value, error) {
	if f.Zones == nil {
		f.Zones = []Zone{}
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("domain.Fingerprint.Value: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (f *Fingerprint) Scan(src any) error {
	b, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("domain.Fingerprint.Scan: %w", err)
	}
	*f = Fingerprint{}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, f); err != nil {
		return fmt.Errorf("domain.Fingerprint.Scan: %w", err)
	}
	return nil
}
