package protocol_test

import (
	"net"
	"testing"

	"github.com/0xRadioAc7iv/go-caskdb/internal/protocol"
)

func TestEncodeDecodeResponse(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{"simple", "OK"},
		{"with payload", "OK hello world"},
		{"empty", ""},
		{"multiline", "OK 2\nkey1 value1\nkey2 value2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			payload, err := protocol.EncodeResponse(tt.resp)
			if err != nil {
				t.Fatalf("EncodeResponse failed: %v", err)
			}

			go func() {
				_, _ = server.Write(payload)
			}()

			got, err := protocol.DecodeResponse(client)
			if err != nil {
				t.Fatalf("DecodeResponse failed: %v", err)
			}

			if got != tt.resp {
				t.Errorf("response mismatch: got %q, want %q", got, tt.resp)
			}
		})
	}
}

func TestDecodeResponse_TruncatedPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload, err := protocol.EncodeResponse("OK something")
	if err != nil {
		t.Fatalf("EncodeResponse failed: %v", err)
	}

	go func() {
		_, _ = server.Write(payload[:len(payload)/2])
		server.Close()
	}()

	if _, err := protocol.DecodeResponse(client); err == nil {
		t.Fatal("expected error on truncated payload, got nil")
	}
}
