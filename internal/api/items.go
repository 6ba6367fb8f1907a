package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/lostfound/internal/metrics"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/service"
	"github.com/erazemk/lostfound/internal/store"
	"github.com/erazemk/lostfound/internal/upload"
)

// ItemsHandler handles item reports and their images.
type ItemsHandler struct {
	Items   *service.Items
	Uploads *upload.Store
	// MaxUploadBytes caps the whole report request, image included.
	MaxUploadBytes int64
}

// List handles GET /api/items. Optional filters: status, reportedBy, q.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.ItemFilter
	if s := q.Get("status"); s != "" {
		status, ok := model.NormalizeItemStatus(s)
		if !ok {
			jsonError(w, http.StatusBadRequest, "status must be Lost or Found")
			return
		}
		f.Status = status
	}
	f.ReportedBy = q.Get("reportedBy")
	f.Search = q.Get("q")

	items, err := h.Items.List(r.Context(), f)
	if err != nil {
		internalError(w, r, "failed to list items", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"items": items})
}

// Stats handles GET /api/items/stats.
func (h *ItemsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Items.Stats(r.Context())
	if err != nil {
		internalError(w, r, "failed to count items", err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	item, err := h.Items.Get(r.Context(), id)
	if err != nil {
		serviceError(w, r, err, "Item not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"item": item})
}

// Create handles POST /api/items. Fields arrive as multipart or urlencoded
// form values; the optional image is stored before the item row.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(h.MaxUploadBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		jsonError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	desc := r.FormValue("desc")
	if desc == "" {
		desc = r.FormValue("description")
	}
	in, err := service.NewItem{
		Name:        r.FormValue("name"),
		Description: desc,
		Status:      r.FormValue("status"),
	}.Validate()
	if err != nil {
		serviceError(w, r, err, "Item not found")
		return
	}

	var stored string
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		stored, err = h.Uploads.Save(header.Filename, file)
		if errors.Is(err, upload.ErrUnsupportedImage) {
			jsonError(w, http.StatusBadRequest, upload.ErrUnsupportedImage.Error())
			return
		}
		if err != nil {
			internalError(w, r, "failed to store item image", err)
			return
		}
		ref := h.Uploads.URL(stored)
		in.Image = &ref
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		jsonError(w, http.StatusBadRequest, "Invalid image upload")
		return
	}

	item, err := h.Items.Report(r.Context(), CurrentUser(r.Context()), in)
	if err != nil {
		if stored != "" {
			removeImage(h.Uploads, stored)
		}
		serviceError(w, r, err, "Item not found")
		return
	}

	metrics.RecordItemReported(item.Status)
	jsonMessage(w, "Item reported successfully", "item", item)
}

// Delete handles DELETE /api/items?id=. A missing image file is not an error.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	item, err := h.Items.Delete(r.Context(), id)
	if err != nil {
		serviceError(w, r, err, "Item not found")
		return
	}
	if item.Image != nil {
		removeImage(h.Uploads, *item.Image)
	}
	jsonMessage(w, "Item deleted successfully")
}
