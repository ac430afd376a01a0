package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestOpen_GeneratesIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "device.json")

	svc, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	info := svc.Info()
	if _, err := uuid.Parse(info.UUID); err != nil {
		t.Errorf("Invalid UUID %q: %v", info.UUID, err)
	}
	if info.Name == "" {
		t.Error("Name should default to the hostname")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Identity not persisted: %v", err)
	}
}

func TestOpen_PersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open (1) failed: %v", err)
	}
	second, err := Open(path)
	if err != nil {
		t.Fatalf("Open (2) failed: %v", err)
	}
	if first.Info().UUID != second.Info().UUID {
		t.Errorf("UUID should persist: %s != %s", first.Info().UUID, second.Info().UUID)
	}
}

func TestOpen_StoredFile(t *testing.T) {
	known := "550e8400-e29b-41d4-a716-446655440000"
	tests := []struct {
		name     string
		content  string
		wantUUID string
		wantName string
	}{
		{"complete", `{"uuid":"` + known + `","name":"Living room"}`, known, "Living room"},
		{"missing name", `{"uuid":"` + known + `"}`, known, ""},
		{"bad uuid", `{"uuid":"nope","name":"x"}`, "", ""},
		{"corrupt", `{`, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "device.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			svc, err := Open(path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			info := svc.Info()
			if tt.wantUUID != "" && info.UUID != tt.wantUUID {
				t.Errorf("UUID = %s, want %s", info.UUID, tt.wantUUID)
			}
			if tt.wantUUID == "" && (info.UUID == "nope" || info.UUID == "") {
				t.Errorf("Expected a regenerated UUID, got %q", info.UUID)
			}
			if tt.wantName != "" && info.Name != tt.wantName {
				t.Errorf("Name = %s, want %s", info.Name, tt.wantName)
			}
			if info.Name == "" {
				t.Error("Name should never be empty")
			}
		})
	}
}

func TestSetName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	svc, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := svc.SetName("  Bedroom  "); err != nil {
		t.Fatalf("SetName failed: %v", err)
	}
	if got := svc.Info().Name; got != "Bedroom" {
		t.Errorf("Name = %q, want Bedroom", got)
	}
	if err := svc.SetName(" "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Expected ErrEmptyName, got %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if got := reopened.Info().Name; got != "Bedroom" {
		t.Errorf("Name not persisted, got %q", got)
	}
}

func TestCard(t *testing.T) {
	svc, err := Open(filepath.Join(t.TempDir(), "device.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	card := svc.Card(map[string]interface{}{
		"status":    "playing",
		"title":     "Holiday",
		"audioOnly": true,
		"volume":    0.5,
	})
	if card["id"] != svc.Info().UUID || card["isSelf"] != true {
		t.Errorf("Unexpected card identity %v", card)
	}
	state := card["state"].(map[string]interface{})
	if state["status"] != "playing" || state["title"] != "Holiday" || state["audioOnly"] != true || state["volume"] != 0.5 {
		t.Errorf("Unexpected card state %v", state)
	}

	idle := svc.Card(nil)["state"].(map[string]interface{})
	if idle["status"] != "idle" || idle["volume"] != float64(1) {
		t.Errorf("Unexpected idle state %v", idle)
	}
}
