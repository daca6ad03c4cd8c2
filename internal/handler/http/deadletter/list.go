package deadletter

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"track-enricher/internal/common/pagination"
	"track-enricher/internal/domain/entity"
	"track-enricher/internal/handler/http/respond"
	"track-enricher/internal/repository"
	dlUC "track-enricher/internal/usecase/deadletter"
)

type ListHandler struct {
	Svc   *dlUC.Service
	Pages pagination.Config
}

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.ParseQueryParams(r, h.Pages)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.Svc.List(r.Context(), filter, params)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]MessageDTO, 0, len(res.Messages))
	for _, m := range res.Messages {
		out = append(out, toDTO(m))
	}
	respond.JSON(w, http.StatusOK, pagination.NewResponse(out, res.Pagination))
}

func parseFilter(r *http.Request) (repository.DeadLetterFilter, error) {
	q := r.URL.Query()
	filter := repository.DeadLetterFilter{
		Provider: strings.TrimSpace(q.Get("provider")),
		Field:    strings.TrimSpace(q.Get("field")),
	}

	if c := strings.TrimSpace(q.Get("class")); c != "" {
		class := entity.ErrorClass(c)
		if !class.Valid() {
			return filter, fmt.Errorf("invalid query parameter: unknown class %q", c)
		}
		filter.Class = class
	}
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		status := entity.MessageStatus(s)
		if status != entity.MessagePending && status != entity.MessageReplaying {
			return filter, fmt.Errorf("invalid query parameter: unknown status %q", s)
		}
		filter.Status = status
	}

	var err error
	if filter.From, err = parseTime(q.Get("from"), "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseTime(q.Get("to"), "to"); err != nil {
		return filter, err
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return filter, fmt.Errorf("invalid query parameter: from must be before to")
	}
	return filter, nil
}

func parseTime(v, name string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("invalid query parameter: %s must be RFC 3339", name)
	}
	return &t, nil
}
