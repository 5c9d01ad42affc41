package liveavatar

import (
	"context"
	"os"
	"testing"

	"github.com/andrassy/viseme-core/core/avatar"
)

func TestStartRequiresInitialize(t *testing.T) {
	client := NewClient()

	if err := client.Start(context.Background()); err == nil {
		t.Fatal("expected start without an initialized session to fail")
	}
}

func TestInitializeRequiresAPIKey(t *testing.T) {
	t.Setenv("AVATAR_API_KEY", "")
	os.Unsetenv("AVATAR_API_KEY")

	client := NewClient()
	err := client.Initialize(context.Background(), avatar.Config{AvatarID: "demo-avatar"})
	if err == nil {
		t.Fatal("expected initialize without an API key to fail")
	}
}

func TestSendAudioDataWithoutConnection(t *testing.T) {
	client := NewClient()

	if err := client.SendAudioData([]int16{1, 2, 3}); err != nil {
		t.Fatalf("expected sends without a connection to be dropped silently, got %v", err)
	}
	if err := client.ClearBuffer(); err != nil {
		t.Fatalf("expected a buffer clear without a connection to be a no-op, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	client := NewClient()

	if err := client.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("expected a repeated close to succeed, got %v", err)
	}

	if err := client.Reconnect(context.Background()); err == nil {
		t.Fatal("expected a closed client to refuse reconnects")
	}
}
