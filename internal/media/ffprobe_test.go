package media

import (
	"errors"
	"testing"
)

func TestParseProbeOutput(t *testing.T) {
	data := []byte(`{
		"format": {"duration": "123.456"},
		"streams": [
			{"codec_type": "video"},
			{"codec_type": "audio"}
		]
	}`)

	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Duration != 123.456 {
		t.Errorf("expected duration 123.456, got %v", info.Duration)
	}
	if !info.HasVideo || !info.HasAudio {
		t.Errorf("expected both streams detected, got %+v", info)
	}
}

func TestParseProbeOutput_AudioOnly(t *testing.T) {
	data := []byte(`{
		"format": {"duration": "7.5"},
		"streams": [{"codec_type": "audio"}]
	}`)

	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.HasVideo {
		t.Error("expected no video stream")
	}
	if !info.HasAudio {
		t.Error("expected audio stream")
	}
}

func TestParseProbeOutput_MissingDuration(t *testing.T) {
	data := []byte(`{"format": {}, "streams": []}`)
	_, err := parseProbeOutput(data)
	if !errors.Is(err, ErrNoDuration) {
		t.Errorf("expected ErrNoDuration, got %v", err)
	}
}

func TestParseProbeOutput_ZeroDuration(t *testing.T) {
	data := []byte(`{"format": {"duration": "0"}, "streams": []}`)
	_, err := parseProbeOutput(data)
	if !errors.Is(err, ErrNoDuration) {
		t.Errorf("expected ErrNoDuration, got %v", err)
	}
}

func TestParseProbeOutput_Malformed(t *testing.T) {
	_, err := parseProbeOutput([]byte("{not json"))
	if err == nil {
		t.Error("expected error for malformed output")
	}
}
