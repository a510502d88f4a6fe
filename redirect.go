package consolelogin

import (
	"net/url"
	"strings"
)

// ResolveRedirect returns where an authenticated user goes next. Users with
// more than one business are sent to the business-selection page with the
// original callback carried as a query parameter; everyone else goes straight
// to the callback. The callback target is never dropped.
func ResolveRedirect(resp *LoginResponse, callbackURL string, cfg RedirectConfig) string {
	if callbackURL == "" {
		callbackURL = cfg.DefaultCallback
	}
	if callbackURL == "" {
		callbackURL = "/"
	}
	if resp == nil || resp.User == nil || len(resp.User.Businesses) <= 1 {
		return callbackURL
	}

	path := cfg.SelectBusinessPath
	if path == "" {
		path = defaultSelectBusinessPath
	}
	param := cfg.CallbackParam
	if param == "" {
		param = defaultCallbackParam
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + url.QueryEscape(param) + "=" + url.QueryEscape(callbackURL)
}
