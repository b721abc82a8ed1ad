package tile

import "math"

// Project maps a geographic point to its tile column and row at the given
// zoom, using the spherical web-mercator transform:
//
//	col = floor((lon+180)/360 * 2^z)
//	row = floor((1 - asinh(tan(latRad))/pi)/2 * 2^z)
//
// No clipping happens here. Inputs outside [-180,180]x[-90,90] yield
// mathematically defined but meaningless results (|lat| >= 90 yields NaN
// rows); callers validate geography upstream and must treat NaN as a fatal
// configuration error.
func Project(lat, lon float64, zoom int) (col, row int) {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180
	x := math.Floor((lon + 180) / 360 * n)
	y := math.Floor((1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n)
	return int(x), int(y)
}

// ProjectF is Project without the floor, exposed for callers that need to
// detect NaN before the int conversion swallows it.
func ProjectF(lat, lon float64, zoom int) (col, row float64) {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180
	col = (lon + 180) / 360 * n
	row = (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n
	return col, row
}
