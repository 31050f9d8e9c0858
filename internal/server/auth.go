package server

import (
	"net/http"
	"time"
)

const tokenCookieName = "imp_token"

// requireToken guards the dashboard surfaces. A valid token may arrive as a
// query parameter; it is exchanged for a session cookie and redirected away
// so a shared URL does not carry a live credential. ?logout=1 on any guarded
// path drops the cookie.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("logout") == "1" {
			s.setSessionCookie(w, "", -1)
			http.Redirect(w, r, r.URL.Path, http.StatusFound)
			return
		}

		if token := r.URL.Query().Get("token"); token != "" {
			if token != s.token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			s.setSessionCookie(w, s.token, int(24*time.Hour/time.Second))

			redirect := r.URL.Path
			q := r.URL.Query()
			q.Del("token")
			if rest := q.Encode(); rest != "" {
				redirect += "?" + rest
			}
			http.Redirect(w, r, redirect, http.StatusFound)
			return
		}

		cookie, err := r.Cookie(tokenCookieName)
		if err != nil || cookie.Value != s.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
	})
}
