package localexec

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/fentz26/cbclipper/internal/alerts"
	"github.com/fentz26/cbclipper/internal/models"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		cmd     string
		allowed bool
	}{
		{"notify-send", true},
		{"osascript", true},
		{"paplay", true},
		{"afplay", true},
		{"rm", false},
		{"sh", false},
		{"/usr/bin/notify-send", false}, // bare names only
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			if got := IsAllowed(tt.cmd); got != tt.allowed {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.cmd, got, tt.allowed)
			}
		})
	}
}

func TestNotify_NotAllowed(t *testing.T) {
	n := New("rm", []string{"-rf", "/"})

	_, err := n.Notify(context.Background(), alerts.ForCompletion(models.ModeFocus, time.Now()))
	if err == nil {
		t.Error("Expected error for non-allowed command")
	}
}

func TestExpandArgs(t *testing.T) {
	a := alerts.Alert{Mode: models.ModeBreak, Title: "CB Clipper", Message: "Break is over."}
	got := expandArgs([]string{"-a", "{title}", "{message} ({mode})"}, a)
	want := []string{"-a", "CB Clipper", "Break is over. (break)"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expandArgs = %v, want %v", got, want)
	}
}

func TestDefaultCommandIsAllowed(t *testing.T) {
	cmd, args := DefaultCommand()
	if !IsAllowed(cmd) {
		t.Errorf("Default command %q is not allow-listed", cmd)
	}
	if len(args) == 0 {
		t.Error("Expected default arguments")
	}

	n := New("", nil)
	if n.command != cmd {
		t.Errorf("Expected empty command to select %q, got %q", cmd, n.command)
	}
}

func TestName(t *testing.T) {
	n := New("", nil)
	if n.Name() != "localexec" {
		t.Errorf("Expected name 'localexec', got %s", n.Name())
	}
}
