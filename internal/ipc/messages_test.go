package ipc

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewMessageEncodesArgs(t *testing.T) {
	msg, err := NewMessage(ChannelRemoteCall, "trayTooltip", "r1", "hi", json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"channel":"remote-call","args":["trayTooltip","r1","hi",{"a":1}]}`
	if string(data) != want {
		t.Errorf("Encode =\n %s\nwant\n %s", data, want)
	}
}

func TestNewMessageEmptyRaw(t *testing.T) {
	msg, err := NewMessage("e", json.RawMessage(nil))
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if string(msg.Args[0]) != "null" {
		t.Errorf("Expected null, got %s", msg.Args[0])
	}
}

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"channel":"remote-subscribe","args":["evt-1","lang-change"]}`))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	id, err := msg.StringArg(0)
	if err != nil || id != "evt-1" {
		t.Errorf("StringArg(0) = %q, %v", id, err)
	}
	name, _ := msg.StringArg(1)
	if name != "lang-change" {
		t.Errorf("StringArg(1) = %q", name)
	}
}

func TestDecodeMessageRejectsEmptyChannel(t *testing.T) {
	if _, err := DecodeMessage([]byte(`{"args":[1]}`)); !errors.Is(err, ErrEmptyPacket) {
		t.Errorf("Expected ErrEmptyPacket, got %v", err)
	}
	if _, err := DecodeMessage([]byte(`not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestArgErrors(t *testing.T) {
	msg := &Message{Channel: "x", Args: []json.RawMessage{json.RawMessage(`42`)}}

	if _, err := msg.StringArg(0); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("Expected ErrInvalidArg, got %v", err)
	}
	if _, err := msg.StringArg(3); !errors.Is(err, ErrMissingArg) {
		t.Errorf("Expected ErrMissingArg, got %v", err)
	}

	var n int
	if err := msg.Arg(0, &n); err != nil || n != 42 {
		t.Errorf("Arg(0) = %d, %v", n, err)
	}
}

func TestRest(t *testing.T) {
	msg, _ := NewMessage(ChannelRemoteEmit, "evt", 1, "two")
	rest := msg.Rest(1)
	if len(rest) != 2 {
		t.Fatalf("Expected 2 rest args, got %d", len(rest))
	}
	if msg.Rest(5) != nil {
		t.Error("Expected nil rest past the end")
	}
	if got := RawArgs(rest); len(got) != 2 {
		t.Errorf("RawArgs len = %d", len(got))
	}
}
