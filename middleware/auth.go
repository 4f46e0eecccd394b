package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"storyforge/auth"
	"storyforge/models"
)

// Authenticate resolves the caller through v and stores it in the request context.
// Requests without a valid identity stop here with 401.
func Authenticate(v auth.Verifier, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := v.Verify(r)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error":   http.StatusText(http.StatusUnauthorized),
					"code":    http.StatusUnauthorized,
					"message": err.Error(),
				})
				return
			}
			ctx := auth.WithOwner(r.Context(), models.UserOwner(userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
