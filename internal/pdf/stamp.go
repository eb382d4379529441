package pdf

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/mattetti/filebuffer"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"
)

const stampDescription = "fontname:Helvetica, points:10, position:bl, scalefactor:1 abs, rotation:0, opacity:1, fillcolor:#000000"

var coordinateKey = regexp.MustCompile(`^(\d+),(\d+),(\d+)$`)

// Placement is a value written at a fixed position of a page, for documents without form fields there
type Placement struct {
	X     float64
	Y     float64
	Page  int
	Value string
}

// ParseCoordinateKey parses "x,y,page" keys. ok is false for ordinary field names.
func ParseCoordinateKey(key string) (x, y float64, page int, ok bool) {
	m := coordinateKey.FindStringSubmatch(key)
	if m == nil {
		return 0, 0, 0, false
	}
	xi, errX := strconv.Atoi(m[1])
	yi, errY := strconv.Atoi(m[2])
	page, errP := strconv.Atoi(m[3])
	if errX != nil || errY != nil || errP != nil {
		return 0, 0, 0, false
	}
	return float64(xi), float64(yi), page, true
}

// SplitValues separates form field values from coordinate placements
func SplitValues(values map[string]string) (map[string]string, []Placement) {
	fields := make(map[string]string, len(values))
	var placements []Placement

	for key, value := range values {
		if x, y, page, ok := ParseCoordinateKey(key); ok {
			placements = append(placements, Placement{X: x, Y: y, Page: page, Value: value})
			continue
		}
		fields[key] = value
	}

	sort.Slice(placements, func(i, j int) bool {
		a, b := placements[i], placements[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Y != b.Y {
			return a.Y > b.Y
		}
		return a.X < b.X
	})

	return fields, placements
}

// Stamper writes placements onto document pages with pdfcpu text stamps
type Stamper struct {
	logger *logrus.Logger
}

// NewStamper creates a Stamper
func NewStamper(logger *logrus.Logger) *Stamper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Stamper{logger: logger}
}

func (s *Stamper) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Stamp returns data with every placement applied. Placements on pages the document does not have are skipped.
func (s *Stamper) Stamp(data []byte, placements []Placement) ([]byte, error) {
	if len(placements) == 0 {
		return data, nil
	}

	pageCount, err := api.PageCount(filebuffer.New(data), s.configuration())
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}

	for _, p := range placements {
		if p.Value == "" {
			continue
		}
		if p.Page < 1 || p.Page > pageCount {
			s.logger.WithFields(logrus.Fields{
				"page":  p.Page,
				"pages": pageCount,
			}).Warn("Skipping placement on a page outside the document")
			continue
		}

		wm, err := pdfcpu.ParseTextWatermarkDetails(p.Value, stampDescription, true, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare text stamp: %w", err)
		}
		wm.Dx = p.X
		wm.Dy = p.Y

		var out bytes.Buffer
		pages := []string{strconv.Itoa(p.Page)}
		if err := api.AddWatermarks(filebuffer.New(data), &out, pages, wm, s.configuration()); err != nil {
			return nil, fmt.Errorf("failed to stamp page %d: %w", p.Page, err)
		}
		data = out.Bytes()
	}

	return data, nil
}
