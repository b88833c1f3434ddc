package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAnnouncementRoundTrip(t *testing.T) {
	anno := Announcement{
		DeviceInfo: DeviceInfo{
			Alias:       "Nice Orange",
			Version:     "2.0",
			DeviceModel: "localsend-go",
			DeviceType:  "headless",
			Fingerprint: "random string",
		},
		Protocol: "https",
		Port:     53317,
		Announce: true,
	}

	b, err := json.Marshal(&anno)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Announcement
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got != anno {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, anno)
	}
	if !got.HTTPS() {
		t.Error("expected https announcement")
	}
}

func TestAnnouncementIPNotOnWire(t *testing.T) {
	anno := Announcement{DeviceInfo: DeviceInfo{Alias: "a", Fingerprint: "f", IP: "192.168.1.2"}}

	b, err := json.Marshal(&anno)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "192.168.1.2") {
		t.Errorf("IP leaked into the wire format: %s", b)
	}
}

func TestPreUploadRoundTrip(t *testing.T) {
	info := NewDeviceInfo("Wise Melon", "fp")
	req := PreUploadReq{
		Info: &info,
		Files: FileMetas{
			"f1": {Id: "f1", Filename: "a.txt", Size: 11, FileMIME: "text/plain"},
			"f2": {Id: "f2", Filename: "b.bin", Size: 1024, FileMIME: "application/octet-stream", Checksum: "deadbeef"},
		},
	}

	b, err := json.Marshal(&req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got PreUploadReq
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Info == nil || got.Info.Alias != "Wise Melon" {
		t.Errorf("info mismatch: %+v", got.Info)
	}
	if len(got.Files) != 2 || got.Files["f1"] != req.Files["f1"] || got.Files["f2"] != req.Files["f2"] {
		t.Errorf("files mismatch: %+v", got.Files)
	}

	resp := PreUploadResp{SessionId: "s1", Tokens: FileTokens{"f1": "tok1"}}
	b, err = json.Marshal(&resp)
	if err != nil {
		t.Fatalf("marshal resp: %v", err)
	}
	if !strings.Contains(string(b), `"files":{"f1":"tok1"}`) {
		t.Errorf("unexpected response wire format: %s", b)
	}

	var gotResp PreUploadResp
	if err := json.Unmarshal(b, &gotResp); err != nil {
		t.Fatalf("unmarshal resp: %v", err)
	}
	if gotResp.SessionId != "s1" || gotResp.Tokens["f1"] != "tok1" {
		t.Errorf("resp round trip mismatch: %+v", gotResp)
	}
}

func TestNormalizeDeviceType(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"mobile", "mobile"},
		{"desktop", "desktop"},
		{"web", "web"},
		{"headless", "headless"},
		{"server", "server"},
		{"unknown", "desktop"},
		{"", "desktop"},
	}

	for _, tt := range tests {
		got := NormalizeDeviceType(tt.input)
		if got != tt.expected {
			t.Errorf("NormalizeDeviceType(%q) = %q; want %q", tt.input, got, tt.expected)
		}
	}
}

func TestGenTextMeta(t *testing.T) {
	meta := GenTextMeta("hello world")

	if meta.Size != int64(len("hello world")) {
		t.Errorf("size = %d; want %d", meta.Size, len("hello world"))
	}
	if meta.FileMIME != TextMIME {
		t.Errorf("mime = %q; want %q", meta.FileMIME, TextMIME)
	}
	if meta.Preview != "hello world" {
		t.Errorf("preview = %q", meta.Preview)
	}
	if !strings.HasSuffix(meta.Filename, ".txt") {
		t.Errorf("filename = %q; want .txt suffix", meta.Filename)
	}
	if meta.Id == "" {
		t.Error("missing id")
	}

	// same text yields the same synthetic name, ids stay unique
	again := GenTextMeta("hello world")
	if again.Filename != meta.Filename {
		t.Errorf("filename not stable: %q vs %q", again.Filename, meta.Filename)
	}
	if again.Id == meta.Id {
		t.Error("ids must be unique per message")
	}
}
