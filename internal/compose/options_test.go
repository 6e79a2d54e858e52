package compose

import (
	"testing"
	"time"
)

func TestForStart(t *testing.T) {
	o := ForStart("web", true, 45*time.Second, map[string]any{
		"flags":             []any{"--profile", "dev"},
		"require_healthy":   false,
		"operation_timeout": 90,
	})
	if o.Member != "web" || !o.Rebuild {
		t.Errorf("Member/Rebuild = %q/%v", o.Member, o.Rebuild)
	}
	if o.RequireHealthy {
		t.Error("RequireHealthy should follow extra[require_healthy]")
	}
	if len(o.Flags) != 2 {
		t.Errorf("Flags = %v, want 2 entries", o.Flags)
	}
	if o.HealthTimeout != 45*time.Second {
		t.Errorf("HealthTimeout = %v, want 45s", o.HealthTimeout)
	}
	if got := o.OperationTimeout(600 * time.Second); got != 90*time.Second {
		t.Errorf("OperationTimeout = %v, want 90s", got)
	}

	if !ForStart("", false, time.Second, nil).RequireHealthy {
		t.Error("RequireHealthy should default to true for start")
	}
}

func TestForStop(t *testing.T) {
	o := ForStop("", true, "local", nil)
	if o.RequireHealthy {
		t.Error("stop must not require health")
	}
	if o.HealthTimeout != DefaultStopHealthTimeout {
		t.Errorf("HealthTimeout = %v, want %v", o.HealthTimeout, DefaultStopHealthTimeout)
	}
	if !o.RemoveVolumes || o.RemoveImages != "local" {
		t.Errorf("RemoveVolumes/RemoveImages = %v/%q", o.RemoveVolumes, o.RemoveImages)
	}
	if got := o.OperationTimeout(time.Minute); got != time.Minute {
		t.Errorf("OperationTimeout = %v, want default 1m", got)
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		in   any
		want time.Duration
		ok   bool
	}{
		{5, 5 * time.Second, true},
		{int64(2), 2 * time.Second, true},
		{1.5, 1500 * time.Millisecond, true},
		{"250ms", 250 * time.Millisecond, true},
		{"3", 3 * time.Second, true},
		{time.Minute, time.Minute, true},
		{"soon", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := seconds(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("seconds(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestOptionsDoNotAliasInput(t *testing.T) {
	flags := []string{"--ansi", "never"}
	extra := map[string]any{"flags": flags}
	o := ForStart("", false, time.Second, extra)

	flags[0] = "--changed"
	extra["operation_timeout"] = 1
	if o.Flags[0] != "--ansi" {
		t.Errorf("Flags[0] = %q, want --ansi", o.Flags[0])
	}
	if _, ok := o.Extra["operation_timeout"]; ok {
		t.Error("Extra should be a copy")
	}
}
