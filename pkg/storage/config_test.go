package storage_test

import (
	"testing"

	"github.com/ledgergate/ledgergate/pkg/storage"
)

func TestConfigFinalize(t *testing.T) {
	tests := []struct {
		name     string
		cfg      storage.Config
		wantList int32
		wantErr  bool
	}{
		{
			name:     "defaults applied",
			cfg:      storage.Config{ConnectionString: "UseDevelopmentStorage=true"},
			wantList: 50,
		},
		{
			name: "list size within cap kept",
			cfg: storage.Config{
				ConnectionString: "UseDevelopmentStorage=true",
				MaxListSize:      100,
			},
			wantList: 100,
		},
		{
			name: "list size above cap is clamped",
			cfg: storage.Config{
				ConnectionString: "UseDevelopmentStorage=true",
				MaxListSize:      9999,
			},
			wantList: storage.MaxListCap,
		},
		{
			name: "list size at cap returns cap",
			cfg: storage.Config{
				ConnectionString: "UseDevelopmentStorage=true",
				MaxListSize:      storage.MaxListCap,
			},
			wantList: storage.MaxListCap,
		},
		{
			name:    "missing connection string fails",
			cfg:     storage.Config{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				return
			}
			if err != nil {
				t.Fatalf("finalize failed: %v", err)
			}
			if tt.cfg.MaxListSize != tt.wantList {
				t.Errorf("max list size: got %d, want %d", tt.cfg.MaxListSize, tt.wantList)
			}
			if tt.cfg.ContainerName != "documents" {
				t.Errorf("container name: got %q, want %q", tt.cfg.ContainerName, "documents")
			}
		})
	}
}
