package permission

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mekedron/nearby/internal/domain"
)

type stubAuthorizer struct {
	status AuthorizationStatus
	err    error
	levels []AuthorizationLevel
}

func (s *stubAuthorizer) RequestAuthorization(_ context.Context, level AuthorizationLevel) (AuthorizationStatus, error) {
	s.levels = append(s.levels, level)
	return s.status, s.err
}

type stubRuntime struct {
	checkGranted bool
	checkErr     error
	result       RequestResult
	requestErr   error
	checkCalls   int
	requestCalls int
}

func (s *stubRuntime) Check(_ context.Context, permission string) (bool, error) {
	s.checkCalls++
	if permission != FineLocation {
		return false, errors.New("unexpected permission " + permission)
	}
	return s.checkGranted, s.checkErr
}

func (s *stubRuntime) Request(context.Context, string) (RequestResult, error) {
	s.requestCalls++
	return s.result, s.requestErr
}

type recordingNotifier struct {
	alerts []Alert
	toasts []string
	press  string
}

func (n *recordingNotifier) Alert(ctx context.Context, alert Alert) {
	n.alerts = append(n.alerts, alert)
	for _, button := range alert.Buttons {
		if button.Text == n.press && button.OnPress != nil {
			button.OnPress(ctx)
		}
	}
}

func (n *recordingNotifier) Toast(message string, duration time.Duration) {
	if duration != ToastLong {
		n.toasts = append(n.toasts, "unexpected duration")
		return
	}
	n.toasts = append(n.toasts, message)
}

type stubSettings struct {
	err   error
	calls int
}

func (s *stubSettings) OpenSettings(context.Context) error {
	s.calls++
	return s.err
}

func TestNewSelectsVariant(t *testing.T) {
	bridges := Bridges{Authorizer: &stubAuthorizer{}, Runtime: &stubRuntime{}}

	cases := []struct {
		name      string
		selection Selection
		check     func(Provider) bool
	}{
		{name: "ios", selection: Selection{Platform: domain.PlatformIOS}, check: func(p Provider) bool { _, ok := p.(*IOS); return ok }},
		{name: "android legacy", selection: Selection{Platform: domain.PlatformAndroid, AndroidSDK: 22}, check: func(p Provider) bool { _, ok := p.(AndroidLegacy); return ok }},
		{name: "android runtime", selection: Selection{Platform: domain.PlatformAndroid, AndroidSDK: 23}, check: func(p Provider) bool { _, ok := p.(*AndroidRuntime); return ok }},
		{name: "android unknown sdk", selection: Selection{Platform: domain.PlatformAndroid}, check: func(p Provider) bool { _, ok := p.(*AndroidRuntime); return ok }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider, err := New(tc.selection, bridges)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.check(provider) {
				t.Fatalf("unexpected provider type %T", provider)
			}
		})
	}
}

func TestNewRequiresBridges(t *testing.T) {
	if _, err := New(Selection{Platform: domain.PlatformIOS}, Bridges{}); !errors.Is(err, ErrMissingBridge) {
		t.Fatalf("expected ErrMissingBridge, got %v", err)
	}
	if _, err := New(Selection{Platform: domain.PlatformAndroid, AndroidSDK: 30}, Bridges{}); !errors.Is(err, ErrMissingBridge) {
		t.Fatalf("expected ErrMissingBridge, got %v", err)
	}
	if _, err := New(Selection{Platform: "symbian"}, Bridges{}); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestIOSMapsStatuses(t *testing.T) {
	cases := []struct {
		status AuthorizationStatus
		want   domain.PermissionState
		alerts int
	}{
		{status: AuthorizationGranted, want: domain.PermissionGranted, alerts: 0},
		{status: AuthorizationDenied, want: domain.PermissionDenied, alerts: 1},
		{status: AuthorizationDisabled, want: domain.PermissionDisabledService, alerts: 1},
		{status: AuthorizationRestricted, want: domain.PermissionUnavailable, alerts: 0},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			authorizer := &stubAuthorizer{status: tc.status}
			notifier := &recordingNotifier{}
			provider, err := New(Selection{Platform: domain.PlatformIOS}, Bridges{Authorizer: authorizer, Notifier: notifier})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			state, err := provider.CheckOrRequest(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if state != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, state)
			}
			if len(notifier.alerts) != tc.alerts {
				t.Fatalf("expected %d alerts, got %d", tc.alerts, len(notifier.alerts))
			}
			if len(authorizer.levels) != 1 || authorizer.levels[0] != AuthorizationWhenInUse {
				t.Fatalf("expected one whenInUse request, got %v", authorizer.levels)
			}
		})
	}
}

func TestIOSDisabledAlertOffersSettings(t *testing.T) {
	settings := &stubSettings{}
	notifier := &recordingNotifier{press: "Go to Settings"}
	provider, _ := New(
		Selection{Platform: domain.PlatformIOS, AppName: "A Service"},
		Bridges{Authorizer: &stubAuthorizer{status: AuthorizationDisabled}, Notifier: notifier, Settings: settings},
	)

	if _, err := provider.CheckOrRequest(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.calls != 1 {
		t.Fatalf("expected settings to be opened once, got %d", settings.calls)
	}
	if len(notifier.alerts) != 1 {
		t.Fatalf("expected only the services alert, got %+v", notifier.alerts)
	}
	alert := notifier.alerts[0]
	if !strings.Contains(alert.Title, `"A Service"`) {
		t.Fatalf("expected app name in title, got %q", alert.Title)
	}
	if len(alert.Buttons) != 2 || alert.Buttons[1].Text != "Don't Use Location" {
		t.Fatalf("unexpected buttons: %+v", alert.Buttons)
	}
}

func TestIOSSettingsFailureShowsFollowUpAlert(t *testing.T) {
	notifier := &recordingNotifier{press: "Go to Settings"}
	provider, _ := New(
		Selection{Platform: domain.PlatformIOS},
		Bridges{
			Authorizer: &stubAuthorizer{status: AuthorizationDisabled},
			Notifier:   notifier,
			Settings:   &stubSettings{err: errors.New("no settings app")},
		},
	)

	if _, err := provider.CheckOrRequest(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.alerts) != 2 || notifier.alerts[1].Title != "Unable to open settings" {
		t.Fatalf("expected follow-up alert, got %+v", notifier.alerts)
	}
}

func TestIOSAuthorizerErrorIsUnavailable(t *testing.T) {
	boom := errors.New("boom")
	provider, _ := New(Selection{Platform: domain.PlatformIOS}, Bridges{Authorizer: &stubAuthorizer{err: boom}})
	state, err := provider.CheckOrRequest(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if state != domain.PermissionUnavailable {
		t.Fatalf("expected unavailable, got %s", state)
	}
}

func TestAndroidLegacyAlwaysGranted(t *testing.T) {
	runtime := &stubRuntime{}
	provider, _ := New(Selection{Platform: domain.PlatformAndroid, AndroidSDK: 19}, Bridges{Runtime: runtime})
	state, err := provider.CheckOrRequest(context.Background())
	if err != nil || state != domain.PermissionGranted {
		t.Fatalf("expected granted, got %s (%v)", state, err)
	}
	if runtime.checkCalls != 0 || runtime.requestCalls != 0 {
		t.Fatal("expected no runtime calls on legacy android")
	}
}

func TestAndroidRuntimeAlreadyGrantedSkipsRequest(t *testing.T) {
	runtime := &stubRuntime{checkGranted: true}
	provider, _ := New(Selection{Platform: domain.PlatformAndroid, AndroidSDK: 33}, Bridges{Runtime: runtime})
	state, err := provider.CheckOrRequest(context.Background())
	if err != nil || state != domain.PermissionGranted {
		t.Fatalf("expected granted, got %s (%v)", state, err)
	}
	if runtime.requestCalls != 0 {
		t.Fatalf("expected no request, got %d", runtime.requestCalls)
	}
}

func TestAndroidRuntimeMapsResults(t *testing.T) {
	cases := []struct {
		result RequestResult
		want   domain.PermissionState
		toast  string
	}{
		{result: RequestGranted, want: domain.PermissionGranted},
		{result: RequestDenied, want: domain.PermissionDenied, toast: "Location permission denied by user."},
		{result: RequestNeverAskAgain, want: domain.PermissionDenied, toast: "Location permission revoked by user."},
		{result: "dismissed", want: domain.PermissionUnavailable},
	}
	for _, tc := range cases {
		t.Run(string(tc.result), func(t *testing.T) {
			notifier := &recordingNotifier{}
			provider, _ := New(
				Selection{Platform: domain.PlatformAndroid, AndroidSDK: 30},
				Bridges{Runtime: &stubRuntime{result: tc.result}, Notifier: notifier},
			)
			state, err := provider.CheckOrRequest(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if state != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, state)
			}
			if tc.toast == "" {
				if len(notifier.toasts) != 0 {
					t.Fatalf("expected no toast, got %v", notifier.toasts)
				}
				return
			}
			if len(notifier.toasts) != 1 || notifier.toasts[0] != tc.toast {
				t.Fatalf("expected toast %q, got %v", tc.toast, notifier.toasts)
			}
			if len(notifier.alerts) != 0 {
				t.Fatalf("expected no alerts on android, got %d", len(notifier.alerts))
			}
		})
	}
}

func TestAndroidRuntimeCheckError(t *testing.T) {
	provider, _ := New(
		Selection{Platform: domain.PlatformAndroid, AndroidSDK: 30},
		Bridges{Runtime: &stubRuntime{checkErr: errors.New("binder died")}},
	)
	state, err := provider.CheckOrRequest(context.Background())
	if err == nil || state != domain.PermissionUnavailable {
		t.Fatalf("expected unavailable with error, got %s (%v)", state, err)
	}
}
