package handlers

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/service"
)

type attributeRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type imageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type deviceResponse struct {
	ID             int64                                  `json:"id"`
	Name           string                                 `json:"name"`
	Description    string                                 `json:"description"`
	Additional     string                                 `json:"additional"`
	Attributes     map[models.AttributeKind]*attributeRef `json:"attributes"`
	Tags           []tagResponse                          `json:"tags"`
	InternalImages []imageResponse                        `json:"internalImages"`
	ExternalImages []string                               `json:"externalImages"`
	CreatedAt      time.Time                              `json:"createdAt"`
	UpdatedAt      time.Time                              `json:"updatedAt"`
}

// deviceImageURL links an image for the scope the device was read under.
func deviceImageURL(deviceID int64, imageID string, shareID string) string {
	u := fmt.Sprintf("/api/image/device/%d/%s", deviceID, imageID)
	if shareID != "" {
		u += "?share=" + url.QueryEscape(shareID)
	}
	return u
}

func newDeviceResponse(view service.DeviceView, shareID string) deviceResponse {
	attrs := make(map[models.AttributeKind]*attributeRef, len(models.AttributeKinds))
	for _, kind := range models.AttributeKinds {
		id := view.Attributes.Get(kind)
		if id == nil {
			attrs[kind] = nil
			continue
		}
		attrs[kind] = &attributeRef{ID: *id, Name: view.AttributeNames[kind]}
	}

	tags := make([]tagResponse, 0, len(view.Tags))
	for _, tag := range view.Tags {
		tags = append(tags, newTagResponse(tag))
	}

	images := make([]imageResponse, 0, len(view.InternalImages))
	for _, imageID := range view.InternalImages {
		images = append(images, imageResponse{ID: imageID, URL: deviceImageURL(view.ID, imageID, shareID)})
	}

	external := view.ExternalImages
	if external == nil {
		external = []string{}
	}

	return deviceResponse{
		ID:             view.ID,
		Name:           view.Name,
		Description:    view.Description,
		Additional:     view.Additional,
		Attributes:     attrs,
		Tags:           tags,
		InternalImages: images,
		ExternalImages: external,
		CreatedAt:      view.CreatedAt,
		UpdatedAt:      view.UpdatedAt,
	}
}

func newDeviceList(views []service.DeviceView, shareID string) []deviceResponse {
	out := make([]deviceResponse, 0, len(views))
	for _, view := range views {
		out = append(out, newDeviceResponse(view, shareID))
	}
	return out
}

// parseIDList reads a comma separated list of positive ids.
func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, apperr.InvalidInputf("invalid id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

// deviceQuery maps the listing query string: name, sort, tags, one
// parameter per attribute kind, page and perPage.
func deviceQuery(c *gin.Context) (models.DeviceQuery, error) {
	limit, offset := pagination(c)
	query := models.DeviceQuery{
		Filter: models.DeviceFilter{
			Name:       strings.TrimSpace(c.Query("name")),
			Attributes: map[models.AttributeKind][]int64{},
		},
		Sort:   models.ParseDeviceSort(c.Query("sort")),
		Offset: offset,
		Limit:  limit,
	}

	tags, err := parseIDList(c.Query("tags"))
	if err != nil {
		return models.DeviceQuery{}, err
	}
	query.Filter.TagIDs = tags

	for _, kind := range models.AttributeKinds {
		ids, err := parseIDList(c.Query(string(kind)))
		if err != nil {
			return models.DeviceQuery{}, err
		}
		if len(ids) > 0 {
			query.Filter.Attributes[kind] = ids
		}
	}
	return query, nil
}

func (h HandlerSet) Dashboard(c *gin.Context) {
	overview, err := h.devices.Overview(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recentlyCreated": newDeviceList(overview.RecentlyCreated, ""),
		"recentlyUpdated": newDeviceList(overview.RecentlyUpdated, ""),
		"total":           overview.Total,
	})
}

func (h HandlerSet) ListDevices(c *gin.Context) {
	scope, err := h.scope(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.listDevices(c, scope)
}

func (h HandlerSet) listDevices(c *gin.Context, scope service.Scope) {
	query, err := deviceQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	page, err := h.devices.List(c.Request.Context(), scope, query)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"devices": newDeviceList(page.Devices, scope.ShareID),
		"total":   page.Total,
	})
}

func (h HandlerSet) GetDevice(c *gin.Context) {
	deviceID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	scope, err := h.scope(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.getDevice(c, scope, deviceID)
}

func (h HandlerSet) getDevice(c *gin.Context, scope service.Scope, deviceID int64) {
	view, err := h.devices.Get(c.Request.Context(), scope, deviceID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": newDeviceResponse(view, scope.ShareID)})
}

// readDeviceForm decodes a device write. Multipart requests carry the
// fields as JSON in the "data" part and photos in "images" parts; plain
// JSON bodies carry the fields alone.
func readDeviceForm(c *gin.Context, dst any) ([]service.Upload, string, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(dst); err != nil {
			return nil, "", apperr.InvalidInput("invalid request body")
		}
		return nil, "", nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body,
		service.MaxUploadsPerRequest*service.MaxDeviceUploadBytes+(1<<20))
	form, err := c.MultipartForm()
	if err != nil {
		return nil, "", apperr.InvalidInput("invalid multipart form")
	}

	if data := formValue(form, "data"); data != "" {
		if err := json.Unmarshal([]byte(data), dst); err != nil {
			return nil, "", apperr.InvalidInput("invalid data field")
		}
	}

	files := form.File["images"]
	if len(files) > service.MaxUploadsPerRequest {
		return nil, "", apperr.InvalidInputf("at most %d images per request", service.MaxUploadsPerRequest)
	}
	uploads := make([]service.Upload, 0, len(files))
	for _, header := range files {
		upload, err := service.ReadUpload(header, service.MaxDeviceUploadBytes)
		if err != nil {
			return nil, "", err
		}
		uploads = append(uploads, upload)
	}
	return uploads, formValue(form, "captchaToken"), nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func (h HandlerSet) CreateDevice(c *gin.Context) {
	var input service.CreateDeviceInput
	uploads, captchaToken, err := readDeviceForm(c, &input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	input.Uploads = uploads
	input.Captcha = service.CaptchaCheck{Token: captchaToken, RemoteIP: c.ClientIP()}

	device, err := h.devices.Create(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": device.ID})
}

func (h HandlerSet) UpdateDevice(c *gin.Context) {
	deviceID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var input service.UpdateDeviceInput
	uploads, _, err := readDeviceForm(c, &input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	input.Uploads = uploads

	device, err := h.devices.Update(c.Request.Context(), currentUserID(c), deviceID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": device.ID})
}

func (h HandlerSet) DeleteDevice(c *gin.Context) {
	deviceID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.devices.Delete(c.Request.Context(), currentUserID(c), deviceID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ListAttributes(c *gin.Context) {
	grouped, err := h.attributes.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make(map[models.AttributeKind][]attributeRef, len(grouped))
	for kind, attrs := range grouped {
		refs := make([]attributeRef, 0, len(attrs))
		for _, attr := range attrs {
			refs = append(refs, attributeRef{ID: attr.ID, Name: attr.DisplayName})
		}
		resp[kind] = refs
	}
	c.JSON(http.StatusOK, gin.H{"attributes": resp})
}

type filterOption struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (h HandlerSet) AttributeFilters(c *gin.Context) {
	filters, err := h.attributes.Filters(c.Request.Context(), service.OwnerScope(currentUserID(c)))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make(map[models.AttributeKind][]filterOption, len(models.AttributeKinds))
	for _, kind := range models.AttributeKinds {
		options := make([]filterOption, 0, len(filters[kind]))
		for _, opt := range filters[kind] {
			options = append(options, filterOption{ID: opt.ID, Name: opt.DisplayName, Count: opt.Count})
		}
		resp[kind] = options
	}
	c.JSON(http.StatusOK, gin.H{"filters": resp})
}
