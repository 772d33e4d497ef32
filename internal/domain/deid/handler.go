package deid

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/astrahealth/deid/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("deid"))
	g.POST("/mask", h.Mask)
	g.POST("/remap/:id", h.Remap)
	g.GET("/mappings/:id", h.GetMapping)
	g.DELETE("/mappings/:id", h.DeleteMapping)
}

// MaskResponse carries the masked record and the identifier needed to
// remap responses built from it.
type MaskResponse struct {
	RecordID     string `json:"record_id"`
	MaskedRecord Record `json:"masked_record"`
	EntryCount   int    `json:"entry_count"`
}

type RemapResponse struct {
	RecordID       string   `json:"record_id"`
	RestoredRecord Record   `json:"restored_record"`
	Warnings       []string `json:"warnings,omitempty"`
}

func (h *Handler) Mask(c echo.Context) error {
	var record Record
	if err := c.Bind(&record); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(record) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "record must have at least one field")
	}
	res, err := h.svc.Mask(c.Request().Context(), record)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "masking failed")
	}
	return c.JSON(http.StatusCreated, MaskResponse{
		RecordID:     res.RecordID.String(),
		MaskedRecord: res.Masked,
		EntryCount:   res.EntryCount,
	})
}

func (h *Handler) Remap(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	var payload Record
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	restored, warnings, err := h.svc.Remap(c.Request().Context(), id, payload)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "mapping not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "remapping failed")
	}
	return c.JSON(http.StatusOK, RemapResponse{
		RecordID:       id.String(),
		RestoredRecord: restored,
		Warnings:       warnings,
	})
}

func (h *Handler) GetMapping(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	info, err := h.svc.Info(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "mapping not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) DeleteMapping(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	if err := h.svc.Purge(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "mapping not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "purge failed")
	}
	return c.NoContent(http.StatusNoContent)
}
