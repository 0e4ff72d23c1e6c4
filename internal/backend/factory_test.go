package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tankkwon/delivery-app/internal/config"
	"github.com/tankkwon/delivery-app/internal/log"
	"github.com/tankkwon/delivery-app/internal/storage"
)

func TestCreateBackend(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name        string
		config      Config
		wantErr     bool
		wantWatcher bool
	}{
		{name: "memory", config: Config{Type: MemoryBackend}},
		{name: "file with watch", config: Config{Type: FileBackend, DataDirectory: filepath.Join(dir, "files"), Watch: true}, wantWatcher: true},
		{name: "file without watch", config: Config{Type: FileBackend, DataDirectory: filepath.Join(dir, "files2")}},
		{name: "sqlite", config: Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "delivery.db")}},
		{name: "file missing directory", config: Config{Type: FileBackend}, wantErr: true},
		{name: "sqlite missing path", config: Config{Type: SQLiteBackend}, wantErr: true},
		{name: "unknown type", config: Config{Type: "postgres"}, wantErr: true},
	}

	factory := NewFactory(log.Discard())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			result, err := factory.CreateBackend(ctx, tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			defer result.Close()

			if (result.Watcher != nil) != tt.wantWatcher {
				t.Errorf("Watcher present = %v, want %v", result.Watcher != nil, tt.wantWatcher)
			}

			if err := result.Store.Set(ctx, storage.KeyGoal, "42"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			v, ok, err := result.Store.Get(ctx, storage.KeyGoal)
			if err != nil || !ok || v != "42" {
				t.Fatalf("Get = %q, %v, %v", v, ok, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "file", DataDir: "/var/lib/delivery", WatchStorage: true}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if got.Type != FileBackend || got.DataDirectory != "/var/lib/delivery" || !got.Watch {
		t.Fatalf("unexpected backend config: %+v", got)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	want := []string{"memory", "file", "sqlite"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
