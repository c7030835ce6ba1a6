package surface

import (
	"encoding/json"
	"fmt"
)

// Point is a pixel offset or size, rendered as [x, y] like the browser map expects.
type Point struct {
	X int
	Y int
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var xy [2]int
	if err := json.Unmarshal(data, &xy); err != nil {
		return err
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

func (p *Point) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var xy []int
	if err := unmarshal(&xy); err != nil {
		return err
	}
	if len(xy) != 2 {
		return fmt.Errorf("точка должна содержать ровно 2 значения, получено %d", len(xy))
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Icon is the static marker appearance handed to the map surface.
type Icon struct {
	URL          string `yaml:"url" json:"iconUrl"`
	ShadowURL    string `yaml:"shadow_url" json:"shadowUrl,omitempty"`
	Size         Point  `yaml:"size" json:"iconSize"`
	ShadowSize   Point  `yaml:"shadow_size" json:"shadowSize"`
	Anchor       Point  `yaml:"anchor" json:"iconAnchor"`
	ShadowAnchor Point  `yaml:"shadow_anchor" json:"shadowAnchor"`
	PopupAnchor  Point  `yaml:"popup_anchor" json:"popupAnchor"`
}

// DefaultIcon is the plane icon served with the map page.
func DefaultIcon() Icon {
	return Icon{
		URL:          "/img/plane.png",
		ShadowURL:    "/img/shadow.png",
		Size:         Point{X: 32, Y: 32},
		ShadowSize:   Point{X: 32, Y: 32},
		Anchor:       Point{X: 0, Y: 0},
		ShadowAnchor: Point{X: -2, Y: -2},
		PopupAnchor:  Point{X: 0, Y: -64},
	}
}
