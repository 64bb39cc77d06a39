// api/models/quote.go
package models

// QuoteRequest holds the form fields sent along with the mesh file
type QuoteRequest struct {
	Quality       string  `form:"quality" json:"quality"`             // unused by the formula
	WallThickness float64 `form:"wallThickness" json:"wall_thickness"` // unused by the formula
	Material      string  `form:"material" json:"material"`
	Infill        int     `form:"infill" json:"infill"`
}

// QuoteResponse is returned on success
type QuoteResponse struct {
	Price float64 `json:"price"`
}

// ErrorResponse is returned on failure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
