package entitlement

import (
	"context"
	"net/http"
	"time"

	domentitlement "github.com/Zhima-Mochi/paywall/internal/domain/entitlement"
)

// cookieMaxAge keeps the flag for as long as a browser allows; local storage never expires.
const cookieMaxAge = 400 * 24 * time.Hour

type exchangeKey struct{}

type exchange struct {
	w       http.ResponseWriter
	r       *http.Request
	written *bool
	secure  bool
}

// WithExchange binds the current HTTP request/response pair to ctx so CookieStore can
// read and set the visitor's cookie.
func WithExchange(ctx context.Context, w http.ResponseWriter, r *http.Request, secure bool) context.Context {
	written := new(bool)
	return context.WithValue(ctx, exchangeKey{}, &exchange{w: w, r: r, written: written, secure: secure})
}

// CookieStore keeps the flag in the visitor's browser, keyed by origin only.
// The server holds no copy, so a visitor can forge it; that boundary is accepted.
type CookieStore struct{}

func NewCookieStore() CookieStore { return CookieStore{} }

func (CookieStore) Read(ctx context.Context) (bool, error) {
	ex, ok := ctx.Value(exchangeKey{}).(*exchange)
	if !ok || ex.r == nil {
		return false, domentitlement.ErrUnavailable
	}
	if *ex.written {
		// Reflect a write made earlier in the same exchange.
		set := readSetCookies(ex.w)
		for i := len(set) - 1; i >= 0; i-- {
			if set[i].Name == domentitlement.Key {
				return domentitlement.Decode(set[i].Value), nil
			}
		}
	}
	c, err := ex.r.Cookie(domentitlement.Key)
	if err != nil {
		return false, nil
	}
	return domentitlement.Decode(c.Value), nil
}

func (CookieStore) Write(ctx context.Context, granted bool) error {
	ex, ok := ctx.Value(exchangeKey{}).(*exchange)
	if !ok || ex.w == nil {
		return domentitlement.ErrUnavailable
	}
	c := &http.Cookie{
		Name:     domentitlement.Key,
		Value:    domentitlement.Encode(granted),
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   ex.secure,
	}
	if granted {
		c.MaxAge = int(cookieMaxAge.Seconds())
	} else {
		c.MaxAge = -1
	}
	http.SetCookie(ex.w, c)
	*ex.written = true
	return nil
}

func (s CookieStore) Clear(ctx context.Context) error {
	return s.Write(ctx, false)
}

func readSetCookies(w http.ResponseWriter) []*http.Cookie {
	resp := http.Response{Header: http.Header{"Set-Cookie": w.Header().Values("Set-Cookie")}}
	return resp.Cookies()
}
