package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

var LocaleKey = localeContextKey{}

// SupportedLocales are the languages user-facing messages are translated into.
var SupportedLocales = []language.Tag{language.English, language.French}

var localeMatcher = language.NewMatcher(SupportedLocales)

// I18N stores the negotiated locale ("en" or "fr") in the request context so
// denial and error messages can be translated.
func I18N(defaultLocale string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, defaultLocale)
			w.Header().Set("Content-Language", locale)
			w.Header().Add("Vary", "Accept-Language, X-Locale")
			next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
		})
	}
}

// WithLocale stores locale in ctx.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, LocaleKey, locale)
}

func detectLocale(r *http.Request, fallback string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return negotiateLocale(v, fallback)
	}
	if v := strings.TrimSpace(r.Header.Get("Accept-Language")); v != "" {
		return negotiateLocale(v, fallback)
	}
	return negotiateLocale(fallback, "")
}

// negotiateLocale matches an Accept-Language style value against the supported
// locales and returns its base language.
func negotiateLocale(value, fallback string) string {
	tags, _, err := language.ParseAcceptLanguage(value)
	if err != nil || len(tags) == 0 {
		if fallback != "" {
			return negotiateLocale(fallback, "")
		}
		return "en"
	}
	_, idx, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		if fallback != "" {
			return negotiateLocale(fallback, "")
		}
		return "en"
	}
	base, _ := SupportedLocales[idx].Base()
	return base.String()
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}
