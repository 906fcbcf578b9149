package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestEncodeDecodeCarriesType(t *testing.T) {
	msg, err := encode(Event{Key: "run-1", Type: "index.complete", Value: map[string]int{"documents": 3}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got := decode(msg)
	if got.Key != "run-1" || got.Type != "index.complete" {
		t.Errorf("unexpected decoded message %+v", got)
	}
	payload, err := DecodeJSON[map[string]int](got.Value)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if payload["documents"] != 3 {
		t.Errorf("documents = %d, want 3", payload["documents"])
	}
}

func TestDecodeWithoutTypeHeader(t *testing.T) {
	got := decode(kafka.Message{Key: []byte("k"), Value: []byte(`{}`)})
	if got.Type != "" {
		t.Errorf("expected empty type, got %q", got.Type)
	}
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	if _, err := DecodeJSON[map[string]any]([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
