package consolelogin

import (
	"context"
	"errors"

	"github.com/MrEthical07/consolelogin/internal/flows"
)

const msgSessionNotSaved = "We could not save your session on this device. Please try again."

// apply runs an outcome in three phases: storage writes, the step commit,
// then notifications, the success callback and navigation outside the lock.
// A failed token write replaces the outcome with a failure and nothing is
// committed.
func (f *Flow) apply(ctx context.Context, from Step, out flows.Outcome, record func(flows.Outcome)) error {
	if f.isClosed() {
		return ErrFlowClosed
	}

	if err := f.runPersist(ctx, out.Effects); err != nil {
		out = flows.Failure(err, msgSessionNotSaved)
	}
	if record != nil {
		record(out)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if !out.Stay() {
		f.enter(from, Step(out.Next), out)
	}
	if out.ClearOTP {
		f.otp = ""
	}
	notices := noticesOf(out.Effects)
	if len(notices) > 0 {
		last := notices[len(notices)-1]
		f.notice = &last
	}
	f.mu.Unlock()

	if !out.Stay() {
		f.engine.logger.Debug("login step changed",
			"flow_id", f.id,
			"from", string(from),
			"to", string(out.Next),
		)
	}
	f.runAfter(ctx, out.Effects)
	return out.Err
}

// enter must be called with f.mu held.
func (f *Flow) enter(from, next Step, out flows.Outcome) {
	if from == StepIdentifier {
		// a new identifier flow starts from a clean slate
		f.clearSecrets()
		f.pinLogin = out.PinLogin
	}

	switch next {
	case StepVerifyOTP:
		f.otp = ""
	case StepSetupPassword:
		f.setupToken = out.SetupToken
		f.password, f.pin = "", ""
		f.newPassword, f.confirmPassword = "", ""
	case StepSuccess:
		f.clearSecrets()
	}

	f.step = next
	f.notice = nil
}

func (f *Flow) runPersist(ctx context.Context, effects []flows.Effect) error {
	e := f.engine
	for _, eff := range effects {
		if !eff.Persist() {
			continue
		}

		var err error
		switch eff.Kind {
		case flows.EffectPersistToken:
			err = e.tokens.Save(ctx, eff.Value)
		case flows.EffectPersistBusiness:
			err = e.store.Set(ctx, e.config.Storage.BusinessKey, eff.Value)
		case flows.EffectPersistCountry:
			err = e.store.Set(ctx, e.config.Storage.CountryKey, eff.Value)
		}
		if err == nil {
			continue
		}
		if eff.Critical() {
			e.logger.Error("session token persistence failed", "flow_id", f.id, "error", err)
			return wrapStorage(err)
		}
		e.warn("login persistence failed", "flow_id", f.id, "kind", int(eff.Kind), "error", err)
	}
	return nil
}

func (f *Flow) runAfter(ctx context.Context, effects []flows.Effect) {
	for _, eff := range effects {
		switch eff.Kind {
		case flows.EffectNotify:
			f.notify(noticeOf(eff))
		case flows.EffectSessionRefreshed:
			if f.onSuccess != nil {
				f.onSuccess(ctx)
			}
		case flows.EffectNavigate:
			f.engine.metricInc(MetricFlowSuccess)
			f.engine.emitAudit(ctx, auditEventFlowSuccess, true, f.id, StepSuccess, nil, func() map[string]string {
				return map[string]string{"redirect": eff.Value}
			})
			f.engine.logger.Info("login flow completed", "flow_id", f.id, "redirect", eff.Value)
			if f.navigator != nil {
				f.navigator.Navigate(eff.Value)
			}
		}
	}
}

func (f *Flow) notify(n Notice) {
	if f.notifier != nil {
		f.notifier.Notify(n)
	}
}

func noticeOf(eff flows.Effect) Notice {
	level := NoticeInfo
	switch eff.Level {
	case flows.LevelWarning:
		level = NoticeWarning
	case flows.LevelError:
		level = NoticeError
	}
	return Notice{Level: level, Message: eff.Value}
}

func noticesOf(effects []flows.Effect) []Notice {
	var out []Notice
	for _, eff := range effects {
		if eff.Kind == flows.EffectNotify {
			out = append(out, noticeOf(eff))
		}
	}
	return out
}

func degraded(out flows.Outcome) bool {
	for _, eff := range out.Effects {
		if eff.Kind == flows.EffectNotify && eff.Level == flows.LevelWarning {
			return true
		}
	}
	return false
}

/*
====================================
METRICS / AUDIT RECORDING
====================================
*/

func (f *Flow) recordIdentify(ctx context.Context, event, identifier string, out flows.Outcome) {
	e := f.engine
	switch {
	case out.Err == nil:
		if event == auditEventOTPResend {
			e.metricInc(MetricOTPResend)
		} else {
			e.metricInc(MetricIdentifySuccess)
		}
		if degraded(out) {
			e.metricInc(MetricOTPDispatchDegraded)
		}
	case errors.Is(out.Err, ErrIdentifierNotFound):
		e.metricInc(MetricIdentifyNotFound)
	case ErrorClass(out.Err) != KindValidation:
		e.metricInc(MetricIdentifyFailure)
	}

	f.audit(ctx, event, identifier, out)
}

func (f *Flow) recordLogin(ctx context.Context, event string, step Step, identifier string, out flows.Outcome) {
	e := f.engine
	setup := step == StepSetupPassword

	switch {
	case out.Err == nil && setup:
		e.metricInc(MetricSetupSuccess)
	case out.Err == nil:
		e.metricInc(MetricLoginSuccess)
		if Step(out.Next) == StepSetupPassword {
			e.metricInc(MetricSetupRequired)
		}
	case ErrorClass(out.Err) == KindValidation:
		if setup {
			e.metricInc(MetricSetupRejected)
		}
	case setup:
		e.metricInc(MetricSetupFailure)
	default:
		e.metricInc(MetricLoginFailure)
	}

	f.audit(ctx, event, identifier, out)
}

func (f *Flow) recordOTP(ctx context.Context, identifier string, out flows.Outcome) {
	e := f.engine
	switch {
	case out.Err == nil:
		e.metricInc(MetricOTPVerifySuccess)
	case ErrorClass(out.Err) != KindValidation:
		e.metricInc(MetricOTPVerifyFailure)
	}

	f.audit(ctx, auditEventOTPVerify, identifier, out)
}

func (f *Flow) audit(ctx context.Context, event, identifier string, out flows.Outcome) {
	f.mu.Lock()
	step := f.step
	f.mu.Unlock()

	f.engine.emitAudit(ctx, event, out.Err == nil, f.id, step, out.Err, func() map[string]string {
		m := map[string]string{"identifier": MaskIdentifier(identifier)}
		if out.Next != "" {
			m["next"] = string(out.Next)
		}
		return m
	})

	if out.Err != nil && ErrorClass(out.Err) == KindInfrastructure {
		f.engine.warn("login call failed",
			"flow_id", f.id,
			"event", event,
			"identifier", MaskIdentifier(identifier),
			"error", out.Err,
		)
	}
}
