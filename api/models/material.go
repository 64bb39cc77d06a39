// api/models/material.go
package models

import "strings"

// DefaultMaterial is used when the request does not name one
const DefaultMaterial = "PLA"

// Materials lists the filament types the shop prints with
var Materials = []string{"PLA", "PETG", "ABS", "TPU"}

// IsValidMaterial checks if a material is a known filament type
func IsValidMaterial(material string) bool {
	upper := strings.ToUpper(material)

	for _, m := range Materials {
		if upper == m {
			return true
		}
	}
	return false
}

// NormalizeMaterial returns the canonical name of a material. Empty and
// unknown values fall back to DefaultMaterial; ok is false for unknown ones.
func NormalizeMaterial(material string) (name string, ok bool) {
	material = strings.TrimSpace(material)
	if material == "" {
		return DefaultMaterial, true
	}
	if !IsValidMaterial(material) {
		return DefaultMaterial, false
	}
	return strings.ToUpper(material), true
}
