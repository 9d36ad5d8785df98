package device

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	host, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split server addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}

	client, err := New(Config{Host: host, Port: port, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client, ts
}

func TestNew_RequiresHost(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, ErrConnect) {
		t.Errorf("New() error = %v, want ErrConnect", err)
	}
}

func TestFetch_BothSucceed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"state":       "Idle",
			"dnd_enabled": false,
		})
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"total_calls": 42,
		})
	})

	client, _ := testClient(t, mux)

	result, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if result.Partial {
		t.Error("Fetch() Partial = true, want false")
	}
	if got := result.Status["state"]; got != "Idle" {
		t.Errorf("status state = %v, want Idle", got)
	}
	if got := result.Stats["total_calls"]; got != float64(42) {
		t.Errorf("stats total_calls = %v, want 42", got)
	}
}

func TestFetch_OneFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"state": "InCall"}) //nolint:errcheck
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, _ := testClient(t, mux)

	result, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !result.Partial {
		t.Error("Fetch() Partial = false, want true")
	}
	if got := result.Status["state"]; got != "InCall" {
		t.Errorf("status state = %v, want InCall", got)
	}
	if result.Stats != nil {
		t.Errorf("stats = %v, want nil", result.Stats)
	}
}

func TestFetch_BothFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	client, _ := testClient(t, mux)

	_, err := client.Fetch(context.Background())
	if err == nil {
		t.Fatal("Fetch() error = nil, want error")
	}
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("Fetch() error = %v, want ErrProtocol", err)
	}
}

func TestFetch_ConnectFailure(t *testing.T) {
	client, ts := testClient(t, http.NewServeMux())
	ts.Close()

	_, err := client.Fetch(context.Background())
	if !errors.Is(err, ErrConnect) {
		t.Errorf("Fetch() error = %v, want ErrConnect", err)
	}
}

func TestFetchStatus_MalformedJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json")) //nolint:errcheck
	})

	client, _ := testClient(t, mux)

	_, err := client.FetchStatus(context.Background())
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("FetchStatus() error = %v, want ErrProtocol", err)
	}
}

func TestFetchSections(t *testing.T) {
	paths := map[string]bool{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		paths[r.URL.Path] = true
		json.NewEncoder(w).Encode(map[string]any{"ok": true}) //nolint:errcheck
	})

	client, _ := testClient(t, mux)
	ctx := context.Background()

	fetches := []struct {
		name string
		path string
		fn   func() error
	}{
		{"dnd", "/dnd", func() error { _, err := client.FetchDND(ctx); return err }},
		{"phonebook", "/phonebook", func() error { _, err := client.FetchPhonebook(ctx); return err }},
		{"blocked", "/blocked", func() error { _, err := client.FetchBlocked(ctx); return err }},
		{"webhooks", "/webhooks", func() error { _, err := client.FetchWebhooks(ctx); return err }},
	}
	for _, f := range fetches {
		t.Run(f.name, func(t *testing.T) {
			if err := f.fn(); err != nil {
				t.Fatalf("fetch error = %v", err)
			}
			if !paths[f.path] {
				t.Errorf("device did not receive GET %s", f.path)
			}
		})
	}
}

func TestInvoke_SendsActionPayload(t *testing.T) {
	var received map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/action", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	client, _ := testClient(t, mux)

	err := client.Invoke(context.Background(), "dial", map[string]any{"number": "5551234"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if received["action"] != "dial" {
		t.Errorf("action = %v, want dial", received["action"])
	}
	if received["number"] != "5551234" {
		t.Errorf("number = %v, want 5551234", received["number"])
	}
}

func TestInvoke_DeviceRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/action", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": "no active call"}) //nolint:errcheck
	})

	client, _ := testClient(t, mux)

	err := client.Invoke(context.Background(), "hangup", nil)
	if !errors.Is(err, ErrDeviceRejected) {
		t.Fatalf("Invoke() error = %v, want ErrDeviceRejected", err)
	}
}

func TestInvoke_NoRetry(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/action", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, _ := testClient(t, mux)

	if err := client.Invoke(context.Background(), "ring", nil); err == nil {
		t.Fatal("Invoke() error = nil, want error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("device received %d requests, want 1", got)
	}
}

func TestConfigureWebhookServer(t *testing.T) {
	var received map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	client, _ := testClient(t, mux)

	err := client.ConfigureWebhookServer(context.Background(), "http://192.168.1.10:8098")
	if err != nil {
		t.Fatalf("ConfigureWebhookServer() error = %v", err)
	}
	if received["server_url"] != "http://192.168.1.10:8098" {
		t.Errorf("server_url = %v, want http://192.168.1.10:8098", received["server_url"])
	}
}

func TestConfigureWebhookServer_RequiresURL(t *testing.T) {
	client, _ := testClient(t, http.NewServeMux())

	err := client.ConfigureWebhookServer(context.Background(), "")
	if !errors.Is(err, ErrDeviceRejected) {
		t.Errorf("ConfigureWebhookServer() error = %v, want ErrDeviceRejected", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassUnknown},
		{"timeout", ErrTimeout, ClassTimeout},
		{"connect", ErrConnect, ClassConnect},
		{"protocol", ErrProtocol, ClassProtocol},
		{"rejected", ErrDeviceRejected, ClassRejected},
		{"other", errors.New("boom"), ClassUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	host, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split server addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	client, err := New(Config{Host: host, Port: port, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Fetch(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Fetch() error = %v, want ErrTimeout", err)
	}
}
