package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"opmelink-api/internal/middleware"
	"opmelink-api/internal/model"
	"opmelink-api/internal/source"
	"opmelink-api/pkg/apierror"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierror.BadRequest("invalid request body")
	}
	return nil
}

// principal returns the caller set by the auth middleware.
func principal(r *http.Request) (model.Principal, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || p.OwnerID == "" {
		return model.Principal{}, apierror.Unauthorized("")
	}
	return p, nil
}

func caseIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "case_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.ValidationError("invalid case_id",
			apierror.FieldError{Field: "case_id", Message: fmt.Sprintf("%q is not a positive integer", raw)})
	}
	return id, nil
}

// dateRangeParam reads start_date/end_date (YYYY-MM-DD, inclusive) as a
// half-open range over source timestamps. Missing bounds are open.
func dateRangeParam(r *http.Request) (model.DateRange, error) {
	q := r.URL.Query()
	startDate, endDate := q.Get("start_date"), q.Get("end_date")

	var dr model.DateRange
	switch {
	case startDate != "" && endDate != "":
		start, end, err := source.ParseDateRange(startDate, endDate)
		if err != nil {
			return dr, apierror.ValidationError(err.Error())
		}
		dr.Start, dr.End = start, end.AddDate(0, 0, 1)
	case startDate != "":
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return dr, apierror.ValidationError(fmt.Sprintf("invalid start_date %q", startDate))
		}
		dr.Start = start
	case endDate != "":
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return dr, apierror.ValidationError(fmt.Sprintf("invalid end_date %q", endDate))
		}
		dr.End = end.AddDate(0, 0, 1)
	}
	return dr, nil
}
