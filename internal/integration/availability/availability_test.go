package availability

import (
	"errors"
	"os/exec"
	"reflect"
	"testing"
)

func fakeLookPath(installed ...string) LookPathFunc {
	set := make(map[string]bool)
	for _, name := range installed {
		set[name] = true
	}
	return func(name string) (string, error) {
		if set[name] {
			return "/usr/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		installed   []string
		deps        []string
		wantOK      bool
		wantMissing []string
	}{
		{"all present", []string{"bully", "aircrack-ng"}, []string{"bully", "aircrack-ng"}, true, nil},
		{"one missing", []string{"bully"}, []string{"bully", "aircrack-ng"}, false, []string{"aircrack-ng"}},
		{"duplicates", nil, []string{"rcrack", "rcrack"}, false, []string{"rcrack"}},
		{"empty", nil, nil, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(WithLookPath(fakeLookPath(tt.installed...)))
			r := c.Check(tt.deps...)
			if r.Available() != tt.wantOK {
				t.Errorf("Available() = %v, want %v", r.Available(), tt.wantOK)
			}
			if !reflect.DeepEqual(r.Missing(), tt.wantMissing) {
				t.Errorf("Missing() = %v, want %v", r.Missing(), tt.wantMissing)
			}
		})
	}
}

func TestCheck_Statuses(t *testing.T) {
	c := NewChecker(WithLookPath(fakeLookPath("foremost")))
	r := c.Check("foremost", "bettercap")

	if len(r.Statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(r.Statuses))
	}
	// Ordered by name.
	if r.Statuses[0].Name != "bettercap" || !errors.Is(r.Statuses[0].Err, exec.ErrNotFound) {
		t.Errorf("statuses[0] = %+v", r.Statuses[0])
	}
	if r.Statuses[1].Path != "/usr/bin/foremost" {
		t.Errorf("statuses[1] = %+v", r.Statuses[1])
	}
	if got := r.String(); got != "missing: bettercap" {
		t.Errorf("String() = %q", got)
	}
}

func TestCheck_RealPath(t *testing.T) {
	r := NewChecker().Check("sh", "detonator-no-such-binary")
	if got := r.Missing(); !reflect.DeepEqual(got, []string{"detonator-no-such-binary"}) {
		t.Errorf("Missing() = %v", got)
	}
}
