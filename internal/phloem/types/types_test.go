package types

import "testing"

func TestFormatFlow(t *testing.T) {
	tests := map[float64]string{
		8.0:  "8.0",
		2.31: "2.31",
		0:    "0.0",
		2.5:  "2.5",
	}
	for in, want := range tests {
		if got := FormatFlow(in); got != want {
			t.Errorf("FormatFlow(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	r := Reading{FlowRate: 8.0, LeakFlag: true}

	if s := StatusFor(ModeDisarmed, ViolationCritical, r, "02:00:00"); s.Code != "DISARMED" || s.Level != StatusInfo {
		t.Errorf("disarmed must win, got %+v", s)
	}
	if s := StatusFor(ModeArmed, ViolationCritical, r, "02:00:00"); s.Banner != "CRITICAL PIPE FAILURE! Flow: 8.0 L/m" || s.Level != StatusError {
		t.Errorf("unexpected critical status %+v", s)
	}
	if s := StatusFor(ModeArmed, ViolationNightLeak, Reading{FlowRate: 0.6}, "02:00:00"); s.Banner != "UNAUTHORIZED NIGHT USAGE! (02:00:00)" || s.Level != StatusWarning {
		t.Errorf("unexpected night status %+v", s)
	}
	if s := StatusFor(ModeArmed, ViolationNone, Reading{}, "14:00:00"); s.Code != "ARMED" || s.Banner != "" {
		t.Errorf("unexpected normal status %+v", s)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"armed": ModeArmed, " DISARMED ": ModeDisarmed} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("standby"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestNightWindowValidate(t *testing.T) {
	if err := (NightWindow{StartHour: 22, EndHour: 6}).Validate(); err != nil {
		t.Errorf("valid window rejected: %v", err)
	}
	for _, w := range []NightWindow{{-1, 6}, {22, 24}} {
		if err := w.Validate(); err == nil {
			t.Errorf("window %+v accepted", w)
		}
	}
}
