package domain

import "testing"

func TestBoundsKey_RoundsToFourDecimals(t *testing.T) {
	a := Bounds{West: 9.190001, South: 45.460004, East: 9.210002, North: 45.470003}
	b := Bounds{West: 9.189996, South: 45.459998, East: 9.209999, North: 45.469997}

	if a.Key() != b.Key() {
		t.Errorf("keys differ for near-identical viewports: %s vs %s", a.Key(), b.Key())
	}
	if a.Key() != "9.1900:45.4600:9.2100:45.4700" {
		t.Errorf("unexpected key layout: %s", a.Key())
	}

	c := Bounds{West: 9.1910, South: 45.4600, East: 9.2100, North: 45.4700}
	if a.Key() == c.Key() {
		t.Errorf("distinct viewports share key %s", a.Key())
	}
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{West: 9.18, South: 45.45, East: 9.21, North: 45.48}

	if !b.Contains(Position{Lat: 45.46, Lon: 9.19}) {
		t.Error("interior point reported outside")
	}
	if b.Contains(Position{Lat: 45.49, Lon: 9.19}) {
		t.Error("point north of box reported inside")
	}
	if b.Contains(Position{Lat: 45.46, Lon: 9.22}) {
		t.Error("point east of box reported inside")
	}
	if !b.Contains(Position{Lat: 45.45, Lon: 9.18}) {
		t.Error("corner point reported outside")
	}
}
