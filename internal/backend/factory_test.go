package backend

import (
	"context"
	"strings"
	"testing"

	"finance/internal/config"
	"finance/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{ExportBackend: "sqlite"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		ExportBackend:       "sheets",
		GoogleSpreadsheetID: "id",
		GoogleSheetName:     "Movements",
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if cfg.Type != SheetsBackend || cfg.GoogleSpreadsheetID != "id" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"unknown", Config{Type: "sqlite"}, "invalid backend type"},
		{"sheets without id", Config{Type: SheetsBackend, GoogleSheetName: "M", GoogleCredentialsJSON: "{}"}, "Spreadsheet ID"},
		{"sheets without name", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleCredentialsJSON: "{}"}, "Sheet name"},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleSheetName: "M"}, "GoogleCredentialsJSON"},
		{"sheets complete", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleSheetName: "M", GoogleCredentialsFile: "sa.json"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_CreateMemoryExporter(t *testing.T) {
	res, err := NewFactory(nil).CreateExporter(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := res.Exporter.(*memory.Store); !ok {
		t.Fatalf("exporter is %T", res.Exporter)
	}
	if res.Cleanup != nil {
		t.Fatal("memory exporter needs no cleanup")
	}
}

func TestFactory_CreateSheetsExporterFailsWithoutCredentials(t *testing.T) {
	_, err := NewFactory(nil).CreateExporter(context.Background(), Config{
		Type:                  SheetsBackend,
		GoogleSpreadsheetID:   "id",
		GoogleSheetName:       "Movements",
		GoogleCredentialsJSON: "invalid-json",
	})
	if err == nil || !strings.Contains(err.Error(), "Google Sheets client") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 2 || got[0] != "sheets" || got[1] != "memory" {
		t.Fatalf("unexpected types %v", got)
	}
}
