package handlers

import (
	"errors"
	"net/http"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/mw"
)

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	var ce *core.Error
	if !errors.As(err, &ce) {
		ce = &core.Error{Type: core.ErrAPI, Message: "internal error"}
	}
	out := *ce
	out.RequestID = reqID

	status := http.StatusInternalServerError
	switch out.Type {
	case core.ErrInvalidRequest:
		status = http.StatusBadRequest
	case core.ErrNotFound:
		status = http.StatusNotFound
	case core.ErrOverloaded:
		status = http.StatusTooManyRequests
	}
	mw.WriteJSONError(w, status, &out)
}
