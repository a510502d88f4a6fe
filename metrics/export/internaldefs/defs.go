package internaldefs

import (
	"github.com/MrEthical07/consolelogin"
)

// Prefix is prepended to every exported series name.
const Prefix = "consolelogin_"

// CounterDef names one counter.
type CounterDef struct {
	ID   consolelogin.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram.
type HistogramDef struct {
	ID   consolelogin.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: consolelogin.MetricIdentifySuccess, Name: Prefix + "identify_success_total", Help: "Identifier lookups that advanced the flow."},
	{ID: consolelogin.MetricIdentifyFailure, Name: Prefix + "identify_failure_total", Help: "Identifier lookups that failed at the server or transport."},
	{ID: consolelogin.MetricIdentifyNotFound, Name: Prefix + "identify_not_found_total", Help: "Identifiers with no matching account."},
	{ID: consolelogin.MetricOTPDispatchDegraded, Name: Prefix + "otp_dispatch_degraded_total", Help: "Identify responses reporting that no code was sent."},
	{ID: consolelogin.MetricOTPResend, Name: Prefix + "otp_resend_total", Help: "Accepted one-time code resend requests."},
	{ID: consolelogin.MetricLoginSuccess, Name: Prefix + "login_success_total", Help: "Successful password or PIN logins."},
	{ID: consolelogin.MetricLoginFailure, Name: Prefix + "login_failure_total", Help: "Rejected password or PIN logins."},
	{ID: consolelogin.MetricSetupRequired, Name: Prefix + "setup_required_total", Help: "Logins that still required a password to be created."},
	{ID: consolelogin.MetricOTPVerifySuccess, Name: Prefix + "otp_verify_success_total", Help: "Accepted one-time codes."},
	{ID: consolelogin.MetricOTPVerifyFailure, Name: Prefix + "otp_verify_failure_total", Help: "Rejected one-time codes."},
	{ID: consolelogin.MetricSetupSuccess, Name: Prefix + "setup_success_total", Help: "Completed password setups."},
	{ID: consolelogin.MetricSetupFailure, Name: Prefix + "setup_failure_total", Help: "Password setups rejected by the server."},
	{ID: consolelogin.MetricSetupRejected, Name: Prefix + "setup_rejected_total", Help: "Password setups blocked by local validation."},
	{ID: consolelogin.MetricFlowSuccess, Name: Prefix + "flow_success_total", Help: "Login flows that reached the success step."},
	{ID: consolelogin.MetricCountryFetch, Name: Prefix + "country_fetch_total", Help: "Successful country catalog fetches."},
	{ID: consolelogin.MetricCountryFetchFailure, Name: Prefix + "country_fetch_failure_total", Help: "Failed country catalog fetches."},
	{ID: consolelogin.MetricRequestInFlightRejected, Name: Prefix + "request_in_flight_rejected_total", Help: "Submits rejected while another call was pending."},
}

// AuditDropped is the name of the audit drop counter.
const AuditDropped = Prefix + "audit_dropped_total"

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: consolelogin.MetricAuthLatency, Name: Prefix + "auth_latency_seconds", Help: "Security API call latency."},
}

// HistogramBounds are the "le" labels matching the engine's eight buckets.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable in instrument names.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
