// internal/api/respond.go
//
// JSON rendering, error mapping, and access logging.

package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yanizio/vrclink/internal/profile"
	"github.com/yanizio/vrclink/internal/shortcode"
	"github.com/yanizio/vrclink/internal/verification"
)

var (
	vrchatIDRe  = regexp.MustCompile(`^usr_[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	discordIDRe = regexp.MustCompile(`^[0-9]{1,20}$`)
)

// validate is shared by all handlers.  vrchatid checks the usr_<uuid> form.
var validate = func() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("vrchatid", func(fl validator.FieldLevel) bool {
		return vrchatIDRe.MatchString(fl.Field().String())
	})
	return v
}()

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+": failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

// requireDiscordID rejects non-snowflake ids before any store call.
func requireDiscordID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !discordIDRe.MatchString(chi.URLParam(r, "discordID")) {
			writeError(w, http.StatusBadRequest, "discord id must be numeric")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, verification.ErrAlreadyVerified),
		errors.Is(err, verification.ErrNotVerified),
		errors.Is(err, verification.ErrNotBanned):
		return http.StatusConflict
	case errors.Is(err, verification.ErrBanned):
		return http.StatusForbidden
	case errors.Is(err, shortcode.ErrMalformedID):
		return http.StatusBadRequest
	case errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, profile.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	switch status {
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		zap.L().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err))
	default:
		// Taxonomy errors are user-facing; the outermost sentinel text is
		// enough.
		msg = errors.UnwrapAll(err).Error()
	}
	writeError(w, status, msg)
}

// accessLog logs one line per request with zap.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())))
	})
}
