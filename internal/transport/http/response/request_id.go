package response

import (
	"net/http"

	appCtx "github.com/classhub/identity-service/internal/pkg/context"
)

func RequestIDFromContext(r *http.Request) string {
	return appCtx.GetRequestID(r.Context())
}
