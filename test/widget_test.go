package test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestWidgetBlankInputAlert pins the client-side rejection path: blank
// input must raise a blocking alert before any request goes out, while
// the on-page error area stays reserved for failures reported by the
// server or the network.
func TestWidgetBlankInputAlert(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "static", "app.js"))
	if err != nil {
		t.Fatalf("Failed to read widget script: %v", err)
	}
	script := string(raw)

	alertCall := `alert("Please enter some content.")`
	if !strings.Contains(script, alertCall) {
		t.Errorf("Widget does not reject blank input with a blocking alert, want %s", alertCall)
	}
	if strings.Contains(script, `showError("Please enter some content.")`) {
		t.Error("Blank-input rejection is routed to the on-page error area instead of an alert")
	}

	fetchAt := strings.Index(script, "fetch(")
	if fetchAt == -1 {
		t.Fatal("Widget script never issues the create request")
	}
	alertAt := strings.Index(script, alertCall)
	if alertAt == -1 || alertAt > fetchAt {
		t.Error("Blank input must be rejected before the create request is issued")
	}
}
