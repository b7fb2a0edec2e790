package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stalestock/internal/analytics"
	"github.com/andresuchdata/stalestock/internal/cache"
	"github.com/andresuchdata/stalestock/internal/domain"
	"github.com/andresuchdata/stalestock/internal/drive"
	"github.com/andresuchdata/stalestock/internal/export"
	"github.com/andresuchdata/stalestock/internal/ingest"
	"github.com/andresuchdata/stalestock/internal/service"
	"github.com/andresuchdata/stalestock/internal/storage"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// multipartOverhead covers boundaries, part headers and form values on
	// top of the file itself.
	multipartOverhead = 1 << 20
)

type DatasetHandler struct {
	service *service.InventoryService
}

func NewDatasetHandler(service *service.InventoryService) *DatasetHandler {
	return &DatasetHandler{service: service}
}

// Instructions returns the upload format guide.
func (h *DatasetHandler) Instructions(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Instructions())
}

// Upload loads a multipart "file" with an optional "encoding" form value.
func (h *DatasetHandler) Upload(c *gin.Context) {
	if limit := h.service.MaxFileSize(); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": service.ErrFileTooLarge.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read uploaded file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read uploaded file"})
		return
	}

	meta, err := h.service.Upload(c.Request.Context(), domain.UploadedFile{
		Filename: header.Filename,
		Data:     data,
		Encoding: c.PostForm("encoding"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, meta)
}

type driveLoadRequest struct {
	FileID   string `json:"file_id" binding:"required"`
	Encoding string `json:"encoding"`
}

func (h *DatasetHandler) LoadFromDrive(c *gin.Context) {
	var req driveLoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_id is required"})
		return
	}

	meta, err := h.service.LoadFromDrive(c.Request.Context(), req.FileID, req.Encoding)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, meta)
}

func (h *DatasetHandler) DriveFiles(c *gin.Context) {
	files, err := h.service.DriveFiles(c.Request.Context(), c.Query("folder_id"), c.Query("path"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *DatasetHandler) Get(c *gin.Context) {
	meta, err := h.service.Meta(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *DatasetHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DatasetHandler) Options(c *gin.Context) {
	opts, err := h.service.Options(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

func (h *DatasetHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"), parseView(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *DatasetHandler) Trend(c *gin.Context) {
	groups, err := h.service.Trend(c.Request.Context(), c.Param("id"), parseView(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *DatasetHandler) TopProducts(c *gin.Context) {
	top, err := h.service.TopProducts(c.Request.Context(), c.Param("id"), parseView(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, top)
}

func (h *DatasetHandler) StoreRanking(c *gin.Context) {
	ranking, err := h.service.StoreRanking(c.Request.Context(), c.Param("id"), parseView(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ranking)
}

func (h *DatasetHandler) Distribution(c *gin.Context) {
	bins, err := h.service.Distribution(c.Request.Context(), c.Param("id"), parseView(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bins)
}

func (h *DatasetHandler) Rows(c *gin.Context) {
	table, err := h.service.Rows(c.Request.Context(), c.Param("id"), parseView(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *DatasetHandler) ExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	name, err := h.service.ExportCSV(c.Request.Context(), c.Param("id"), parseView(c), &buf)
	if err != nil {
		writeError(c, err)
		return
	}
	attachment(c, name)
	c.Data(http.StatusOK, csvContentType, buf.Bytes())
}

func (h *DatasetHandler) ExportXLSX(c *gin.Context) {
	var buf bytes.Buffer
	name, err := h.service.ExportXLSX(c.Request.Context(), c.Param("id"), parseView(c), &buf)
	if err != nil {
		writeError(c, err)
		return
	}
	attachment(c, name)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *DatasetHandler) Report(c *gin.Context) {
	report, err := h.service.Report(c.Request.Context(), c.Param("id"), parseView(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.String(http.StatusOK, report)
}

func (h *DatasetHandler) Chart(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.service.Chart(c.Request.Context(), c.Param("id"), c.Param("kind"), parseView(c), &buf); err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *DatasetHandler) Archive(c *gin.Context) {
	result, err := h.service.Archive(c.Request.Context(), c.Param("id"), parseView(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *DatasetHandler) RecentImports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.service.RecentImports(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// parseView reads the render configuration from the query string. The sort
// order defaults to descending.
func parseView(c *gin.Context) domain.ViewConfig {
	view := domain.ViewConfig{
		Filter: domain.Filter{
			Store:    strings.TrimSpace(c.Query("store")),
			Category: strings.TrimSpace(c.Query("category")),
		},
		GroupBy:    strings.TrimSpace(c.Query("group_by")),
		Columns:    splitQuery(c.QueryArray("columns")),
		SortBy:     strings.TrimSpace(c.Query("sort_by")),
		Descending: !strings.EqualFold(c.Query("order"), "asc"),
	}

	if n, err := strconv.Atoi(c.Query("n")); err == nil && n > 0 {
		view.TopN = n
	}
	if bins, err := strconv.Atoi(c.Query("bins")); err == nil && bins > 0 {
		view.Bins = bins
	}

	return view
}

// splitQuery accepts both ?columns=a&columns=b and ?columns=a,b.
func splitQuery(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(name))
}

func writeError(c *gin.Context, err error) {
	var missing *ingest.MissingColumnsError
	if errors.As(err, &missing) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"missing": missing.Missing,
			"columns": missing.Headers,
		})
		return
	}

	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, cache.ErrDatasetNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrEmptyFile),
		errors.Is(err, ingest.ErrMalformedCSV),
		errors.Is(err, ingest.ErrUnknownEncoding),
		errors.Is(err, analytics.ErrUnknownColumn),
		errors.Is(err, analytics.ErrUnknownDimension),
		errors.Is(err, analytics.ErrNoDateColumn),
		errors.Is(err, export.ErrUnknownChart),
		errors.Is(err, drive.ErrUnsupportedFile):
		return http.StatusBadRequest
	case errors.Is(err, export.ErrNothingToChart):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrStorageDisabled),
		errors.Is(err, drive.ErrDriveDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
