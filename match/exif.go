// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"io"

	"github.com/jcodagnone/housefinder/spatial"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// dmsToDegrees converts a degrees/minutes/seconds GPS tag to decimal degrees.
func dmsToDegrees(tag *tiff.Tag) (float64, bool) {
	var parts [3]float64

	for i := range parts {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return 0, false
		}

		parts[i] = float64(num) / float64(den)
	}

	return parts[0] + parts[1]/60 + parts[2]/3600, true
}

func gpsAxis(x *exif.Exif, value, ref exif.FieldName, negateOn string) (float64, bool) {
	tag, err := x.Get(value)
	if err != nil {
		return 0, false
	}

	degrees, ok := dmsToDegrees(tag)
	if !ok {
		return 0, false
	}

	refTag, err := x.Get(ref)
	if err != nil {
		return 0, false
	}

	refVal, err := refTag.StringVal()
	if err != nil {
		return 0, false
	}

	if refVal == negateOn {
		degrees = -degrees
	}

	return degrees, true
}

// ExtractLocation reads the GPS tag group embedded in an image and returns
// the geographic point it encodes. An image without EXIF data, without a GPS
// block, or with a malformed one yields nil rather than an error.
func ExtractLocation(r io.Reader) *spatial.Point {
	x, err := exif.Decode(r)
	if err != nil {
		return nil
	}

	lat, ok := gpsAxis(x, exif.GPSLatitude, exif.GPSLatitudeRef, "S")
	if !ok {
		return nil
	}

	lng, ok := gpsAxis(x, exif.GPSLongitude, exif.GPSLongitudeRef, "W")
	if !ok {
		return nil
	}

	point := &spatial.Point{Lat: lat, Lng: lng}
	if !point.Valid() {
		return nil
	}

	return point
}
