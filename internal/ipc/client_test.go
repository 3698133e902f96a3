package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"
)

// fakeHost answers remote calls the way the host router does.
func fakeHost(t *testing.T) (*Client, *Conn, <-chan *Message) {
	t.Helper()
	a, b := net.Pipe()
	client := NewClient(a, nil)
	host := NewConn(b, nil)
	seen := make(chan *Message, 16)

	go host.Serve(func(m *Message) {
		if m.Channel == ChannelRemoteCall {
			method, _ := m.StringArg(0)
			replyID, _ := m.StringArg(1)
			switch method {
			case "version":
				host.Reply(replyID, "v7.2.0")
			case "boom":
				host.ReplyError(replyID, errors.New("unknown command: boom"))
			case "slow":
				// no reply
			}
		}
		seen <- m
	})
	go client.Run()

	t.Cleanup(func() {
		client.Close()
		host.Close()
	})
	return client, host, seen
}

func TestClientCall(t *testing.T) {
	client, _, _ := fakeHost(t)

	raw, err := client.Call(context.Background(), "version")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil || v != "v7.2.0" {
		t.Errorf("version = %q, %v", v, err)
	}
}

func TestClientCallRemoteError(t *testing.T) {
	client, _, _ := fakeHost(t)

	_, err := client.Call(context.Background(), "boom")
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remote.Method != "boom" {
		t.Errorf("Method = %q", remote.Method)
	}
}

func TestClientCallTimeout(t *testing.T) {
	client, _, _ := fakeHost(t)
	client.SetCallTimeout(30 * time.Millisecond)

	_, err := client.Call(context.Background(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestClientInvokeSendsEmptyReplyID(t *testing.T) {
	client, _, seen := fakeHost(t)

	if err := client.Invoke("flashTrayIcon", true); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	m := receive(t, seen)
	replyID, _ := m.StringArg(1)
	if m.Channel != ChannelRemoteCall || replyID != "" {
		t.Errorf("Expected remote-call with empty reply id, got %s %q", m.Channel, replyID)
	}
}

func TestClientSubscribeReceivesEvents(t *testing.T) {
	client, host, seen := fakeHost(t)

	got := make(chan string, 1)
	eventID, err := client.Subscribe("lang-change", func(args []json.RawMessage) {
		var lang string
		json.Unmarshal(args[0], &lang)
		got <- lang
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	m := receive(t, seen)
	if id, _ := m.StringArg(0); id != eventID {
		t.Errorf("subscribe id = %q, want %q", id, eventID)
	}
	if name, _ := m.StringArg(1); name != "lang-change" {
		t.Errorf("subscribe name = %q", name)
	}

	host.Send(eventID, "zh-cn")
	select {
	case lang := <-got:
		if lang != "zh-cn" {
			t.Errorf("lang = %q", lang)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	if err := client.Unsubscribe(eventID); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if m := receive(t, seen); m.Channel != ChannelRemoteUnsubscribe {
		t.Errorf("Expected remote-unsubscribe, got %s", m.Channel)
	}
}

func TestClientOnHandlesPushes(t *testing.T) {
	client, host, _ := fakeHost(t)

	shown := make(chan struct{}, 1)
	client.On(ChannelWindowShow, func(*Message) { shown <- struct{}{} })

	host.Send(ChannelWindowShow)
	select {
	case <-shown:
	case <-time.After(2 * time.Second):
		t.Fatal("window-show not handled")
	}
}

func TestClientHello(t *testing.T) {
	client, _, seen := fakeHost(t)

	if err := client.Hello("main"); err != nil {
		t.Fatalf("Hello: %v", err)
	}
	m := receive(t, seen)
	var hello HelloData
	if err := m.Arg(0, &hello); err != nil {
		t.Fatalf("Arg: %v", err)
	}
	if hello.Name != "main" || hello.PID == 0 {
		t.Errorf("hello = %+v", hello)
	}
	if client.Conn().Name() != "main" {
		t.Errorf("conn name = %q", client.Conn().Name())
	}
}
