package consolelogin

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventIdentify      = "identify"
	auditEventOTPResend     = "otp_resend"
	auditEventLogin         = "login"
	auditEventOTPVerify     = "otp_verify"
	auditEventSetupPassword = "setup_password"
	auditEventFlowSuccess   = "flow_success"
	auditEventCountryFetch  = "country_fetch"
	auditEventFlowClosed    = "flow_closed"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrValidation      AuditErrorCode = "validation"
	auditErrNotFound        AuditErrorCode = "identifier_not_found"
	auditErrUnsupportedAuth AuditErrorCode = "unsupported_auth_method"
	auditErrTokenMissing    AuditErrorCode = "token_missing"
	auditErrServerRejected  AuditErrorCode = "server_rejected"
	auditErrCountriesDown   AuditErrorCode = "countries_unavailable"
	auditErrStorage         AuditErrorCode = "storage_unavailable"
	auditErrFlow            AuditErrorCode = "flow_misuse"
	auditErrCanceled        AuditErrorCode = "canceled"
	auditErrInfrastructure  AuditErrorCode = "infrastructure"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	flowID string,
	step Step,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		FlowID:    flowID,
		Step:      string(step),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	case errors.Is(err, ErrIdentifierNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrUnsupportedAuthMethod):
		return auditErrUnsupportedAuth
	case errors.Is(err, ErrTokenMissing), errors.Is(err, ErrSetupTokenMissing):
		return auditErrTokenMissing
	case errors.Is(err, ErrCountriesUnavailable):
		return auditErrCountriesDown
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrStorage
	}

	switch ErrorClass(err) {
	case KindValidation:
		return auditErrValidation
	case KindFlow:
		return auditErrFlow
	case KindAuth:
		return auditErrServerRejected
	default:
		return auditErrInfrastructure
	}
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now()
}
