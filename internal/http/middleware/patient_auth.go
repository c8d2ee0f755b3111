package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const patientClaimsKey contextKey = "patientClaims"

// PatientClaims carries the signed-in patient's identity. Subject holds the
// portal user id; PatientID and PatientUID are the two owner keys the global
// appointment collection is queryable by.
type PatientClaims struct {
	PatientID   string `json:"patientId"`
	PatientUID  string `json:"patientUid"`
	PatientName string `json:"patientName,omitempty"`
	jwt.RegisteredClaims
}

// PatientJWT enforces an HMAC-signed JWT for patient portal endpoints.
func PatientJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "patient auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := PatientClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				http.Error(w, "token missing subject", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), patientClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithPatientClaims injects claims directly, bypassing token
// verification. Handler tests use it in place of PatientJWT.
func ContextWithPatientClaims(ctx context.Context, claims PatientClaims) context.Context {
	return context.WithValue(ctx, patientClaimsKey, claims)
}

// PatientClaimsFromContext returns patient JWT claims if present.
func PatientClaimsFromContext(ctx context.Context) (PatientClaims, bool) {
	claims, ok := ctx.Value(patientClaimsKey).(PatientClaims)
	return claims, ok
}
