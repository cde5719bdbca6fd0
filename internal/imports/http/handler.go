package importshttp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgerflow/internal/imports"
	"github.com/odyssey-erp/ledgerflow/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

const (
	uploadRateLimit  = 10
	uploadRateWindow = time.Minute
	// DefaultMaxFileSize bounds an upload body when no limit is configured.
	DefaultMaxFileSize int64 = 50_000_000
)

// Ingestor accepts uploads.
type Ingestor interface {
	IngestCSV(ctx context.Context, scope shared.Scope, fileName string, payload []byte) (imports.IngestResult, error)
}

// Inspector reads batches and rows.
type Inspector interface {
	ListImports(ctx context.Context, scope shared.Scope, status *imports.BatchStatus, limit, offset int) (shared.Listing[imports.Batch], error)
	GetImportDetails(ctx context.Context, scope shared.Scope, batchID uuid.UUID) (imports.Details, error)
	ListImportRows(ctx context.Context, scope shared.Scope, batchID uuid.UUID, limit, offset int) (shared.Listing[imports.Row], error)
}

// Handler serves import endpoints.
type Handler struct {
	logger      *slog.Logger
	ingestor    Ingestor
	inspector   Inspector
	maxFileSize int64
}

// NewHandler constructs the handler. maxFileSize <= 0 selects DefaultMaxFileSize.
func NewHandler(logger *slog.Logger, ingestor Ingestor, inspector Inspector, maxFileSize int64) *Handler {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Handler{logger: logger, ingestor: ingestor, inspector: inspector, maxFileSize: maxFileSize}
}

// MountRoutes registers import endpoints on a client-scoped router. Uploads
// are rate limited per client.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(uploadRateLimit, uploadRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "upload rate limit exceeded")
		}),
	)
	r.With(limiter).Post("/imports", h.upload)
	r.Get("/imports", h.list)
	r.Get("/imports/{batchID}", h.details)
	r.Get("/imports/{batchID}/rows", h.rows)
}

func rateLimitKey(r *http.Request) (string, error) {
	if scope, ok := shared.ScopeFromContext(r.Context()); ok {
		return "client:" + scope.ClientID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "file exceeds "+strconv.FormatInt(h.maxFileSize, 10)+" bytes")
			return
		}
		httpx.RespondError(w, shared.Validation("multipart field \"file\" is required"))
		return
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		httpx.RespondError(w, shared.Validation("read upload: %v", err))
		return
	}
	result, err := h.ingestor.IngestCSV(r.Context(), scope, header.Filename, payload)
	if err != nil {
		h.logError("upload import", scope, err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	var status *imports.BatchStatus
	if raw := q.Get("status"); raw != "" {
		st, err := imports.ParseBatchStatus(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		status = &st
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	listing, err := h.inspector.ListImports(r.Context(), scope, status, limit, offset)
	if err != nil {
		h.logError("list imports", scope, err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listing)
}

func (h *Handler) details(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batchID, err := batchParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	details, err := h.inspector.GetImportDetails(r.Context(), scope, batchID)
	if err != nil {
		h.logError("import details", scope, err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) rows(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batchID, err := batchParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	listing, err := h.inspector.ListImportRows(r.Context(), scope, batchID, limit, offset)
	if err != nil {
		h.logError("import rows", scope, err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listing)
}

func batchParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		return uuid.Nil, shared.Validation("batchId must be a UUID")
	}
	return id, nil
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return 0, 0, shared.Validation("limit must be an integer")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			return 0, 0, shared.Validation("offset must be an integer")
		}
	}
	return limit, offset, nil
}

func (h *Handler) logError(op string, scope shared.Scope, err error) {
	if h.logger == nil {
		return
	}
	level := slog.LevelWarn
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(context.Background(), level, "import request failed",
		slog.String("op", op),
		slog.String("client_id", scope.ClientID.String()),
		slog.Any("error", err))
}
