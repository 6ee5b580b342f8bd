package api

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-filestore/pkg/filestore"
)

const (
	// MaxTags is the most tags one upload or query may carry
	MaxTags = 5

	streamBufferSize = 16 * 1024
)

// FilesHandler exposes the file storage service over HTTP
type FilesHandler struct {
	service filestore.Service
}

func NewFilesHandler(service filestore.Service) *FilesHandler {
	return &FilesHandler{service: service}
}

// Routes returns the router for files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upload", h.UploadFile)
	r.Get("/public", h.ListPublicFiles)
	r.Get("/user", h.ListUserFiles)
	r.Get("/{fileId}", h.DownloadFile)
	r.Patch("/{fileId}", h.RenameFile)
	r.Delete("/{fileId}", h.DeleteFile)
	return r
}

// UploadFile stores the raw request body. The declared type comes from the
// Content-Type header; metadata comes from the query string.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	visibility, err := filestore.ParseVisibility(q.Get("visibility"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tags, err := parseTags(q)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	body, err := nonEmptyBody(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.service.UploadFile(r.Context(), filestore.UploadFileRequest{
		OwnerID:             q.Get("userId"),
		FileName:            q.Get("fileName"),
		DeclaredContentType: r.Header.Get("Content-Type"),
		Visibility:          visibility,
		Tags:                tags,
		Body:                body,
	})
	if err != nil {
		writeServiceError(w, r, "upload", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, view)
}

// ListPublicFiles lists PUBLIC files, optionally filtered by tags
func (h *FilesHandler) ListPublicFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, tags, err := parseListQuery(q)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.FetchPublicFiles(r.Context(), tags, page)
	if err != nil {
		writeServiceError(w, r, "list_public", err)
		return
	}
	render.JSON(w, r, result)
}

// ListUserFiles lists every file of userId, optionally filtered by tags
func (h *FilesHandler) ListUserFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	page, tags, err := parseListQuery(q)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.FetchUserFiles(r.Context(), userID, tags, page)
	if err != nil {
		writeServiceError(w, r, "list_user", err)
		return
	}
	render.JSON(w, r, result)
}

// DownloadFile streams the file content as an attachment
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := uuid.Parse(chi.URLParam(r, "fileId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid file id")
		return
	}

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	view, rc, err := h.service.GetFile(r.Context(), fileID, userID)
	if err != nil {
		writeServiceError(w, r, "download", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Disposition", contentDisposition(view.FileName))
	w.Header().Set("Content-Type", view.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(view.SizeBytes, 10))
	if view.ContentHash != "" {
		w.Header().Set("ETag", strconv.Quote(view.ContentHash))
	}
	w.WriteHeader(http.StatusOK)

	buf := make([]byte, streamBufferSize)
	if _, err := io.CopyBuffer(w, rc, buf); err != nil {
		// headers are already sent, all we can do is log
		slog.WarnContext(r.Context(), "download interrupted", "file_id", fileID, "error", err)
	}
}

// RenameFile changes the file name of a file owned by userId
func (h *FilesHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := uuid.Parse(chi.URLParam(r, "fileId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid file id")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	view, err := h.service.RenameFile(r.Context(), userID, fileID, r.URL.Query().Get("fileName"))
	if err != nil {
		writeServiceError(w, r, "rename", err)
		return
	}
	render.JSON(w, r, view)
}

// DeleteFile removes a file owned by userId
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := uuid.Parse(chi.URLParam(r, "fileId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid file id")
		return
	}

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteFile(r.Context(), fileID, userID); err != nil {
		writeServiceError(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireUserID writes a 400 and returns false when the userId query
// parameter is blank.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("userId")
	if strings.TrimSpace(userID) == "" {
		writeError(w, r, http.StatusBadRequest, "userId is required")
		return "", false
	}
	return userID, true
}

// nonEmptyBody rejects requests without content, including chunked bodies
// that turn out to be empty.
func nonEmptyBody(r *http.Request) (io.Reader, error) {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil, errors.New("request body is empty")
	}
	br := bufio.NewReader(r.Body)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("request body is empty")
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return br, nil
}

func parseTags(q map[string][]string) ([]string, error) {
	var tags []string
	for _, v := range q["tags"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	if len(tags) > MaxTags {
		return nil, fmt.Errorf("at most %d tags are allowed", MaxTags)
	}
	return tags, nil
}

func parseListQuery(q map[string][]string) (filestore.PageRequest, []string, error) {
	get := func(key string) string {
		if v := q[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	page := filestore.DefaultPageRequest()

	if v := get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, nil, errors.New("page must be a non-negative integer")
		}
		page.Page = n
	}
	if v := get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > filestore.MaxPageSize {
			return page, nil, fmt.Errorf("size must be between 1 and %d", filestore.MaxPageSize)
		}
		page.Size = n
	}
	if v := get("sortBy"); v != "" {
		field, err := filestore.ParseSortField(v)
		if err != nil {
			return page, nil, err
		}
		page.SortBy = field
	}
	if v := get("ascending"); v != "" {
		asc, err := strconv.ParseBool(v)
		if err != nil {
			return page, nil, errors.New("ascending must be true or false")
		}
		page.Ascending = asc
	}

	tags, err := parseTags(q)
	if err != nil {
		return page, nil, err
	}
	return page, tags, nil
}

func contentDisposition(fileName string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return "attachment"
}
