// Package prometheus renders the login engine counters in Prometheus text
// exposition format.
//
// Series are named consolelogin_*_total; the auth call latency histogram is
// consolelogin_auth_latency_seconds. No global registry is touched; callers
// mount Handler where they want it.
package prometheus
