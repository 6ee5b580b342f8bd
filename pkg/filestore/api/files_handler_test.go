package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-filestore/pkg/filestore"
	"github.com/tendant/simple-filestore/pkg/filestore/presets"
)

func setupTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := presets.NewTesting(t)
	r := chi.NewRouter()
	r.Mount("/files", NewFilesHandler(svc).Routes())
	return r
}

func doRequest(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "text/plain")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func uploadFile(t *testing.T, h http.Handler, owner, name, visibility, body string, tags ...string) filestore.FileView {
	t.Helper()
	q := url.Values{}
	q.Set("userId", owner)
	q.Set("fileName", name)
	q.Set("visibility", visibility)
	for _, tag := range tags {
		q.Add("tags", tag)
	}
	rec := doRequest(t, h, http.MethodPost, "/files/upload?"+q.Encode(), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view filestore.FileView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestUploadFile(t *testing.T) {
	h := setupTestRouter(t)

	view := uploadFile(t, h, "u1", "hello.txt", "PUBLIC", "hello world", "Docs", "q1")
	assert.Equal(t, "hello.txt", view.FileName)
	assert.Equal(t, filestore.VisibilityPublic, view.Visibility)
	assert.Equal(t, int64(11), view.SizeBytes)
	assert.Equal(t, []string{"docs", "q1"}, view.Tags)
	assert.NotEmpty(t, view.ContentHash)
}

func TestUploadFile_Rejections(t *testing.T) {
	h := setupTestRouter(t)

	tests := []struct {
		name   string
		query  string
		body   string
		status int
	}{
		{"empty body", "userId=u1&fileName=a.txt&visibility=PUBLIC", "", http.StatusBadRequest},
		{"bad visibility", "userId=u1&fileName=a.txt&visibility=SECRET", "x", http.StatusBadRequest},
		{"too many tags", "userId=u1&fileName=a.txt&visibility=PUBLIC&tags=a,b,c,d,e,f", "x", http.StatusBadRequest},
		{"missing file name", "userId=u1&visibility=PUBLIC", "x", http.StatusBadRequest},
		{"missing owner", "fileName=a.txt&visibility=PUBLIC", "x", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/files/upload?"+tt.query, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec).Error)
		})
	}
}

func TestUploadFile_DuplicateName(t *testing.T) {
	h := setupTestRouter(t)
	uploadFile(t, h, "u1", "same.txt", "PRIVATE", "one")

	rec := doRequest(t, h, http.MethodPost, "/files/upload?userId=u1&fileName=same.txt&visibility=PRIVATE", "two")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(filestore.KindDuplicate), decodeError(t, rec).Code)
}

func TestListFiles(t *testing.T) {
	h := setupTestRouter(t)
	uploadFile(t, h, "u1", "a.txt", "PUBLIC", "aaa", "q1")
	uploadFile(t, h, "u1", "b.txt", "PRIVATE", "bbb", "q1")
	uploadFile(t, h, "u2", "c.txt", "PUBLIC", "ccc")

	t.Run("public", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/files/public?sortBy=FILENAME", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var page filestore.Page[filestore.FileView]
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		require.Len(t, page.Items, 2)
		assert.Equal(t, "a.txt", page.Items[0].FileName)
		assert.Equal(t, "c.txt", page.Items[1].FileName)
		assert.Equal(t, int64(2), page.TotalItems)
	})

	t.Run("public by tag", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/files/public?tags=Q1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var page filestore.Page[filestore.FileView]
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, "a.txt", page.Items[0].FileName)
	})

	t.Run("user", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/files/user?userId=u1&size=1&page=1&sortBy=FILENAME", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var page filestore.Page[filestore.FileView]
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, "b.txt", page.Items[0].FileName)
		assert.Equal(t, 2, page.TotalPages)
	})

	t.Run("bad paging", func(t *testing.T) {
		for _, q := range []string{"page=-1", "size=0", "size=51", "sortBy=COLOR", "ascending=maybe"} {
			rec := doRequest(t, h, http.MethodGet, "/files/public?"+q, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("user requires id", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/files/user", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDownloadFile(t *testing.T) {
	h := setupTestRouter(t)
	public := uploadFile(t, h, "u1", "report final.txt", "PUBLIC", "public body")
	private := uploadFile(t, h, "u1", "secret.txt", "PRIVATE", "private body")

	t.Run("public by anyone", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/files/"+public.ID.String()+"?userId=u2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "public body", rec.Body.String())
		assert.Equal(t, "11", rec.Header().Get("Content-Length"))
		assert.Equal(t, public.ContentType, rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="report final.txt"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, `"`+public.ContentHash+`"`, rec.Header().Get("ETag"))
	})

	t.Run("private by owner", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/files/"+private.ID.String()+"?userId=u1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "private body", rec.Body.String())
	})

	t.Run("private by stranger", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/files/"+private.ID.String()+"?userId=u2", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/files/00000000-0000-0000-0000-000000000001?userId=u1", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/files/not-a-uuid?userId=u1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRenameFile(t *testing.T) {
	h := setupTestRouter(t)
	view := uploadFile(t, h, "u1", "old.txt", "PRIVATE", "content")
	uploadFile(t, h, "u1", "taken.txt", "PRIVATE", "other")

	rec := doRequest(t, h, http.MethodPatch, "/files/"+view.ID.String()+"?userId=u1&fileName=new.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var renamed filestore.FileView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &renamed))
	assert.Equal(t, "new.txt", renamed.FileName)
	assert.Equal(t, view.ID, renamed.ID)

	rec = doRequest(t, h, http.MethodPatch, "/files/"+view.ID.String()+"?userId=u1&fileName=taken.txt", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, h, http.MethodPatch, "/files/"+view.ID.String()+"?userId=u2&fileName=mine.txt", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodPatch, "/files/"+view.ID.String()+"?userId=u1&fileName=", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteFile(t *testing.T) {
	h := setupTestRouter(t)
	view := uploadFile(t, h, "u1", "gone.txt", "PUBLIC", "bye")

	rec := doRequest(t, h, http.MethodDelete, "/files/"+view.ID.String()+"?userId=u2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/files/"+view.ID.String()+"?userId=u1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/files/"+view.ID.String()+"?userId=u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/files/"+view.ID.String()+"?userId=u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFileRoutes_RequireUserID(t *testing.T) {
	h := setupTestRouter(t)
	view := uploadFile(t, h, "u1", "kept.txt", "PUBLIC", "still here")
	path := "/files/" + view.ID.String()

	tests := []struct {
		name   string
		method string
		target string
	}{
		{"download without user", http.MethodGet, path},
		{"download blank user", http.MethodGet, path + "?userId=%20"},
		{"rename without user", http.MethodPatch, path + "?fileName=new.txt"},
		{"delete without user", http.MethodDelete, path},
		{"list without user", http.MethodGet, "/files/user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, tt.method, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := doRequest(t, h, http.MethodGet, path+"?userId=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "still here", rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{filestore.ErrValidation, http.StatusBadRequest},
		{filestore.ErrNotFound, http.StatusNotFound},
		{filestore.ErrUnauthorized, http.StatusForbidden},
		{filestore.ErrDuplicateFile, http.StatusConflict},
		{&filestore.StorageError{Backend: "fs", Op: "write", Err: assert.AnError}, http.StatusInternalServerError},
		{&filestore.StorageError{Backend: "fs", Op: "write", Err: &http.MaxBytesError{Limit: 1}}, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), "%v", tt.err)
	}
}

func TestWriteServiceError_HidesInternalDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	writeServiceError(rec, req, "test", &filestore.StorageError{Backend: "fs", Key: "secret/path", Op: "open", Err: assert.AnError})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, bytes.Contains(rec.Body.Bytes(), []byte("secret/path")))
	assert.Equal(t, string(filestore.KindStorage), decodeError(t, rec).Code)
}
