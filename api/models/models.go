// api/models/models.go
package models

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Error messages returned to the storefront
const (
	MsgNoFile          = "Aucun fichier reçu"
	MsgInvalidFile     = "Fichier invalide"
	MsgInvalidInfill   = "Remplissage invalide"
	MsgFileTooLarge    = "Fichier trop volumineux"
	MsgAnalysisFailure = "Erreur analyse STL"
)

// Form defaults
const (
	DefaultQuality       = "standard"
	DefaultWallThickness = 1.2
	DefaultInfill        = 20
	MinInfill            = 0
	MaxInfill            = 100
)

// ErrInvalidInfill is returned when infill is not an integer percentage
var ErrInvalidInfill = errors.New("infill must be an integer between 0 and 100")

// ParseInfill parses the infill form value. An empty value gives DefaultInfill.
func ParseInfill(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultInfill, nil
	}

	infill, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidInfill, "got %q", raw)
	}
	if infill < MinInfill || infill > MaxInfill {
		return 0, errors.Wrapf(ErrInvalidInfill, "got %d", infill)
	}
	return infill, nil
}

// ParseWallThickness parses the wall thickness form value. Anything that is
// not a positive number gives DefaultWallThickness.
func ParseWallThickness(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return DefaultWallThickness
	}
	return v
}

// NewQuoteRequest builds a QuoteRequest from raw form values
func NewQuoteRequest(quality, wallThickness, material, infill string) (*QuoteRequest, bool, error) {
	n, err := ParseInfill(infill)
	if err != nil {
		return nil, false, err
	}

	if quality = strings.TrimSpace(quality); quality == "" {
		quality = DefaultQuality
	}
	name, known := NormalizeMaterial(material)

	return &QuoteRequest{
		Quality:       quality,
		WallThickness: ParseWallThickness(wallThickness),
		Material:      name,
		Infill:        n,
	}, known, nil
}
