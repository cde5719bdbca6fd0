package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// problems maps the shared error taxonomy onto HTTP statuses, checked in order.
var problems = []struct {
	target error
	status int
	title  string
}{
	{shared.ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{shared.ErrNotFound, http.StatusNotFound, "Not Found"},
	{shared.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{shared.ErrStorage, http.StatusBadGateway, "Storage Unavailable"},
	{shared.ErrProcessing, http.StatusUnprocessableEntity, "Processing Failed"},
}

// StatusFor returns the status RespondError would write for err.
func StatusFor(err error) int {
	for _, p := range problems {
		if errors.Is(err, p.target) {
			return p.status
		}
	}
	return http.StatusInternalServerError
}

// RespondError writes err as a problem response. Errors outside the taxonomy
// become a 500 whose detail is withheld.
func RespondError(w http.ResponseWriter, err error) {
	for _, p := range problems {
		if errors.Is(err, p.target) {
			Problem(w, p.status, p.title, err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
