package web

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	flashCookie = "flash"
	// FlashTTL is how long a transient message lives, in the cookie and
	// on screen.
	FlashTTL = 5 * time.Second

	flashSuccess = "success"
	flashError   = "error"
)

type Flash struct {
	Kind string
	Text string
}

func setFlash(w http.ResponseWriter, kind, text string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + ":" + text),
		Path:     "/",
		MaxAge:   int(FlashTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads the pending message, if any, and clears it.
func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	kind, text, ok := strings.Cut(raw, ":")
	if !ok || text == "" || (kind != flashSuccess && kind != flashError) {
		return nil
	}
	return &Flash{Kind: kind, Text: text}
}
