package query

import "offstore/internal/object"

// validateBox checks the structural rules for axis-aligned geo boxes.
// The failure messages are part of the operator's contract: callers match
// on them to distinguish the antimeridian case.
func validateBox(sw, ne object.GeoPoint) error {
	if ne.Latitude < sw.Latitude {
		return NewInvalidQuery("geo box southwest corner must be south of the northeast corner")
	}
	if ne.Longitude < sw.Longitude {
		return NewInvalidQuery("geo box queries cannot cross the International Date Line")
	}
	if ne.Longitude-sw.Longitude >= 180 {
		return NewInvalidQuery("geo box query cannot span 180 degrees of longitude or more")
	}
	return nil
}

// pointInBox reports whether p lies inside the (validated) box.
func pointInBox(p, sw, ne object.GeoPoint) bool {
	return p.Latitude >= sw.Latitude && p.Latitude <= ne.Latitude &&
		p.Longitude >= sw.Longitude && p.Longitude <= ne.Longitude
}

// validatePolygon checks the minimum-vertex rule for polygon constraints.
func validatePolygon(points []object.GeoPoint) error {
	if len(points) < 3 {
		return NewInvalidQuery("polygon must have at least 3 points")
	}
	return nil
}

// pointInPolygon tests containment by ray casting: a point is inside when
// a ray cast along constant latitude crosses the polygon's edges an odd
// number of times. Points exactly on a vertex count as inside.
func pointInPolygon(p object.GeoPoint, points []object.GeoPoint) bool {
	inside := false
	j := len(points) - 1
	for i := 0; i < len(points); i++ {
		a, b := points[i], points[j]
		if a == p || b == p {
			return true
		}
		if (a.Latitude > p.Latitude) != (b.Latitude > p.Latitude) {
			crossing := (b.Longitude-a.Longitude)*(p.Latitude-a.Latitude)/
				(b.Latitude-a.Latitude) + a.Longitude
			if p.Longitude < crossing {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
