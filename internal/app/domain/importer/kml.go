// Package importer reads pub locations exported from map tools as KML.
package importer

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/geo"
)

var ErrNoPlacemarks = errors.New("kml file has no placemarks")

type placemark struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Point       *struct {
		Coordinates string `xml:"coordinates"`
	} `xml:"Point"`
}

// Skipped names a placemark that could not become a pub.
type Skipped struct {
	Name   string
	Reason string
}

type Result struct {
	Pubs    []models.NewPub
	Skipped []Skipped
}

// ParseKML collects every Placemark in the document, at any depth. The
// description becomes the address. Placemarks without a name or a valid
// point are reported in Skipped.
func ParseKML(r io.Reader) (*Result, error) {
	dec := xml.NewDecoder(r)
	res := &Result{}
	seen := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading kml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Placemark" {
			continue
		}

		var pm placemark
		if err := dec.DecodeElement(&pm, &start); err != nil {
			return nil, fmt.Errorf("decoding placemark %d: %w", seen+1, err)
		}
		seen++

		pub, reason := toPub(pm)
		if reason != "" {
			res.Skipped = append(res.Skipped, Skipped{Name: clean(pm.Name), Reason: reason})
			continue
		}
		res.Pubs = append(res.Pubs, pub)
	}

	if seen == 0 {
		return nil, ErrNoPlacemarks
	}
	return res, nil
}

func toPub(pm placemark) (models.NewPub, string) {
	name := clean(pm.Name)
	if name == "" {
		return models.NewPub{}, "missing name"
	}
	if pm.Point == nil {
		return models.NewPub{}, "not a point"
	}
	loc, err := parseCoordinates(pm.Point.Coordinates)
	if err != nil {
		return models.NewPub{}, err.Error()
	}

	pub := models.NewPub{Name: name, Location: loc}
	if addr := clean(pm.Description); addr != "" {
		pub.Address = &addr
	}
	return pub, ""
}

// parseCoordinates reads a KML "lon,lat[,alt]" tuple.
func parseCoordinates(s string) (geo.Point, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) < 2 || len(parts) > 3 {
		return geo.Point{}, fmt.Errorf("bad coordinates %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("bad longitude %q", parts[0])
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("bad latitude %q", parts[1])
	}
	p := geo.Point{Lon: lon, Lat: lat}
	if !p.Valid() {
		return geo.Point{}, fmt.Errorf("coordinates out of range %q", s)
	}
	return p, nil
}

func clean(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
