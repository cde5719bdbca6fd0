package importshttp

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerflow/internal/imports"
	"github.com/odyssey-erp/ledgerflow/internal/imports/importstest"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

type fixture struct {
	router chi.Router
	store  *importstest.Store
	scope  shared.Scope
}

func newFixture(t *testing.T, maxFileSize int64) fixture {
	t.Helper()
	store := importstest.NewStore()
	scope := shared.NewScope(uuid.New(), uuid.New(), uuid.New())
	handler := NewHandler(nil,
		imports.NewIngestor(store, nil, &importstest.Publisher{}, 0, nil),
		imports.NewService(store, nil, nil),
		maxFileSize)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithScope(r.Context(), scope)))
		})
	})
	handler.MountRoutes(r)
	return fixture{router: r, store: store, scope: scope}
}

func upload(t *testing.T, r http.Handler, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUploadAndInspect(t *testing.T) {
	f := newFixture(t, 0)

	rec := upload(t, f.router, "ledger.csv", "date,amount\n2024-01-01,10\n2024-01-02,20\n")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result imports.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, []string{"date", "amount"}, result.Headers)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports?status=uploaded", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listing shared.Listing[imports.Batch]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Total)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/"+result.BatchID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var details imports.Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Len(t, details.SampleRows, 2)
	assert.Equal(t, "20", details.SampleRows[1].Data["amount"])

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/"+result.BatchID.String()+"/rows?limit=1&offset=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rows shared.Listing[imports.Row]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Equal(t, 2, rows.Total)
	require.Len(t, rows.Items, 1)
	assert.Equal(t, 2, rows.Items[0].Index)
}

func TestUploadRejections(t *testing.T) {
	f := newFixture(t, 64)

	assert.Equal(t, http.StatusBadRequest, upload(t, f.router, "ledger.txt", "a\n1\n").Code)
	assert.Equal(t, http.StatusBadRequest, upload(t, f.router, "ledger.csv", "a,b\n").Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge,
		upload(t, f.router, "ledger.csv", "a,b\n"+string(bytes.Repeat([]byte("1,2\n"), 64))).Code)

	req := httptest.NewRequest(http.MethodPost, "/imports", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInspectErrors(t *testing.T) {
	f := newFixture(t, 0)
	other := f.store.PutBatch(imports.Batch{ID: uuid.New(), ClientID: uuid.New(), FileName: "x.csv", Status: imports.BatchUploaded})

	cases := map[string]struct {
		path   string
		status int
	}{
		"bad id":         {path: "/imports/nope", status: http.StatusBadRequest},
		"missing batch":  {path: "/imports/" + uuid.NewString(), status: http.StatusNotFound},
		"foreign batch":  {path: "/imports/" + other.ID.String() + "/rows", status: http.StatusNotFound},
		"bad status":     {path: "/imports?status=done", status: http.StatusBadRequest},
		"bad pagination": {path: "/imports?limit=ten", status: http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}
