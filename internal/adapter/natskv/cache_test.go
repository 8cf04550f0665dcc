package natskv

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func testOpen(t *testing.T) *Set {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}

	ctx := context.Background()
	const bucket = "SOLRELAY_TEST_DEDUP"
	t.Cleanup(func() { _ = js.DeleteKeyValue(ctx, bucket) })

	s, err := Open(ctx, js, bucket, time.Minute)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestSetAddContains(t *testing.T) {
	s := testOpen(t)
	ctx := context.Background()

	found, err := s.Contains(ctx, "sigMissing")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("unexpected member")
	}

	if err := s.Add(ctx, "sigPresent", time.Minute); err != nil {
		t.Fatal(err)
	}
	found, err = s.Contains(ctx, "sigPresent")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected member after Add")
	}
}
