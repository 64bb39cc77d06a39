package handlers

import (
	"net/http"

	"github.com/devadigapratham/printquote/api/models"
	"github.com/devadigapratham/printquote/quote"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// FileField is the multipart field carrying the mesh
const FileField = "stlFile"

// AnalyseSTL prices an uploaded STL file
func (h *Handler) AnalyseSTL(c *gin.Context) {
	logger := zerolog.Ctx(c.Request.Context())

	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	}

	if err := c.Request.ParseMultipartForm(h.opts.MaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: models.MsgFileTooLarge})
			return
		}
		logger.Debug().Err(err).Msg("request is not a multipart form")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgNoFile})
		return
	}
	// Remove the parts the multipart reader spilled to disk
	defer c.Request.MultipartForm.RemoveAll()

	fileHeader, err := c.FormFile(FileField)
	if err != nil {
		// Parts with an empty or absent filename are parsed as plain values
		if _, ok := c.Request.MultipartForm.Value[FileField]; ok {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgInvalidFile})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgNoFile})
		return
	}
	if name := fileHeader.Filename; name == "" || name == "." || name == "/" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgInvalidFile})
		return
	}

	req, known, err := models.NewQuoteRequest(
		c.PostForm("quality"),
		c.PostForm("wallThickness"),
		c.PostForm("material"),
		c.PostForm("infill"),
	)
	if err != nil {
		logger.Debug().Err(err).Msg("rejected infill")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgInvalidInfill})
		return
	}
	if !known {
		logger.Warn().Str("material", c.PostForm("material")).Msg("unknown material, pricing as " + models.DefaultMaterial)
	}
	logger.Debug().
		Str("filename", fileHeader.Filename).
		Int64("size", fileHeader.Size).
		Str("quality", req.Quality).
		Float64("wall_thickness", req.WallThickness).
		Msg("quote requested")

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   models.MsgAnalysisFailure,
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	price, err := h.Quoter.Quote(c.Request.Context(), quote.Input{
		File:     file,
		Filename: fileHeader.Filename,
		Material: req.Material,
		Infill:   req.Infill,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   models.MsgAnalysisFailure,
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.QuoteResponse{Price: price})
}
