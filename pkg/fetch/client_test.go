package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept, gotDNT string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotDNT = r.Header.Get("DNT")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	client := NewClient(nil)
	resp, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() returned error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, expected 200", resp.StatusCode)
	}
	if gotUA == "" || gotDNT != "1" {
		t.Errorf("browser headers not sent: UA=%q DNT=%q", gotUA, gotDNT)
	}
	if gotAccept == "" {
		t.Error("Accept header not sent")
	}
	if !resp.IsHTML() {
		t.Errorf("IsHTML() = false for Content-Type %q", resp.ContentType())
	}
}

func TestFetchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(nil)
	_, err := client.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Fetch() expected error for 404 response")
	}

	kind, ok := KindOf(err)
	if !ok {
		t.Fatalf("error %v is not a *Error", err)
	}
	if kind != KindRequest {
		t.Errorf("kind = %q, expected %q", kind, KindRequest)
	}
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{Timeout: 50 * time.Millisecond})
	_, err := client.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Fetch() expected timeout error")
	}

	if kind, _ := KindOf(err); kind != KindTimeout {
		t.Errorf("kind = %q, expected %q (error: %v)", kind, KindTimeout, err)
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewClient(nil)
	_, err := client.Fetch(context.Background(), addr)
	if err == nil {
		t.Fatal("Fetch() expected error for closed server")
	}

	if kind, _ := KindOf(err); kind != KindConnection {
		t.Errorf("kind = %q, expected %q (error: %v)", kind, KindConnection, err)
	}
}

func TestFetchCertificateError(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	// Default client does not trust httptest's self-signed certificate.
	client := NewClient(nil)
	_, err := client.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Fetch() expected certificate error")
	}

	if kind, _ := KindOf(err); kind != KindSSL {
		t.Errorf("kind = %q, expected %q (error: %v)", kind, KindSSL, err)
	}
}

func TestFetchGzipBody(t *testing.T) {
	const page = "<html><head><title>compressed</title></head></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(page))
		_ = gz.Close()
	}))
	defer server.Close()

	client := NewClient(nil)
	resp, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() returned error: %v", err)
	}
	if string(resp.Body) != page {
		t.Errorf("Body = %q, expected decompressed page", resp.Body)
	}
}

func TestFetchBodySizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		for i := 0; i < 1000; i++ {
			_, _ = w.Write([]byte("0123456789"))
		}
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{Timeout: time.Second, MaxBodyBytes: 100})
	resp, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() returned error: %v", err)
	}
	if len(resp.Body) != 100 {
		t.Errorf("len(Body) = %d, expected cap at 100", len(resp.Body))
	}
}

func TestResponseTextCharsetConversion(t *testing.T) {
	// "café" in ISO-8859-1: the é is a single 0xE9 byte.
	latin1 := []byte{'c', 'a', 'f', 0xE9}
	resp := &Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=iso-8859-1"}},
		Body:       latin1,
	}

	text, err := resp.Text()
	if err != nil {
		t.Fatalf("Text() returned error: %v", err)
	}
	if text != "café" {
		t.Errorf("Text() = %q, expected %q", text, "café")
	}
}

func TestKindOfForeignError(t *testing.T) {
	if _, ok := KindOf(errors.New("parse failure")); ok {
		t.Error("KindOf() matched a non-fetch error")
	}
}
