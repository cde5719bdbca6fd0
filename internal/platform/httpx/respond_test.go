package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.Validation("bad file"), http.StatusBadRequest},
		{shared.NotFound("import batch"), http.StatusNotFound},
		{fmt.Errorf("scope: %w", shared.ErrForbidden), http.StatusForbidden},
		{shared.Storage("open", errors.New("boom")), http.StatusBadGateway},
		{shared.Processing("parse", errors.New("boom")), http.StatusUnprocessableEntity},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Equal(t, tc.status, StatusFor(tc.err))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
	}
}

func TestInternalErrorsHideDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("password=hunter2"))
	assert.NotContains(t, rr.Body.String(), "hunter2")
}

func TestProblemContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	Problem(rr, http.StatusTooManyRequests, "Too Many Requests", "slow down")
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "about:blank", body.Type)
	assert.Equal(t, "slow down", body.Detail)
}

func TestBindRejectsUnknownAndTrailingInput(t *testing.T) {
	type payload struct {
		Amount string `json:"amount" validate:"required"`
	}
	cases := map[string]string{
		"unknown field": `{"amount":"1.00","extra":true}`,
		"trailing data": `{"amount":"1.00"} {"amount":"2.00"}`,
		"missing field": `{}`,
		"not json":      `amount=1`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			var target payload
			assert.ErrorIs(t, Bind(req, &target), shared.ErrValidation)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"12.50"}`))
	var target payload
	require.NoError(t, Bind(req, &target))
	assert.Equal(t, "12.50", target.Amount)
}
