package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "9001")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("DASHBOARD_PER_PAGE", "")
	t.Setenv("DASHBOARD_SESSION_TTL_MINUTES", "")
	t.Setenv("AUTO_ANALYZE_GROUP_IDS", "26000171552, 26000250424")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Dashboard.APIBaseURL != "http://localhost:9001/api" {
		t.Fatalf("expected API base URL derived from APP_PORT, got %s", cfg.Dashboard.APIBaseURL)
	}
	if cfg.Dashboard.PerPage != 30 {
		t.Fatalf("expected default per page 30, got %d", cfg.Dashboard.PerPage)
	}
	if len(cfg.Polling.GroupIDs) != 2 || cfg.Polling.GroupIDs[0] != 26000171552 {
		t.Fatalf("unexpected group ids: %v", cfg.Polling.GroupIDs)
	}
	if cfg.Dashboard.SessionTTL() != time.Hour {
		t.Fatalf("expected 1h session ttl, got %s", cfg.Dashboard.SessionTTL())
	}
}

func TestLoadRejectsBadGroupIDs(t *testing.T) {
	t.Setenv("AUTO_ANALYZE_GROUP_IDS", "abc")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error for non numeric group ids")
	}
}

func TestLoadRequiresSecretWhenAuthRequired(t *testing.T) {
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("AUTH_JWT_SECRET", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error when auth is required without a secret")
	}
}

func TestLoadGroups(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		groups, err := LoadGroups("")
		if err != nil {
			t.Fatalf("LoadGroups returned error: %v", err)
		}
		if len(groups) != len(DefaultGroups) {
			t.Fatalf("expected %d default groups, got %d", len(DefaultGroups), len(groups))
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "groups.yaml")
		content := "groups:\n  - id: 42\n    name: Payroll\n  - id: 7\n    name: Facilities\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write groups file: %v", err)
		}
		groups, err := LoadGroups(path)
		if err != nil {
			t.Fatalf("LoadGroups returned error: %v", err)
		}
		if len(groups) != 2 || groups[0].ID != 42 || groups[1].Name != "Facilities" {
			t.Fatalf("unexpected groups: %+v", groups)
		}
	})

	t.Run("incomplete entry", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "groups.yaml")
		if err := os.WriteFile(path, []byte("groups:\n  - id: 42\n"), 0o600); err != nil {
			t.Fatalf("write groups file: %v", err)
		}
		if _, err := LoadGroups(path); err == nil {
			t.Fatalf("expected error for entry without name")
		}
	})
}
