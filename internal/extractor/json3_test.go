package extractor

import "testing"

func TestParseJSON3SkipsEmptyEvents(t *testing.T) {
	raw := []byte(`{
		"events": [
			{"tStartMs": 1000, "dDurationMs": 2000, "segs": [{"utf8": "hello\n"}, {"utf8": "world"}]},
			{"tStartMs": 3000, "dDurationMs": 500, "segs": [{"utf8": "   "}]},
			{"tStartMs": 4000, "dDurationMs": 1000}
		]
	}`)

	segments, err := parseJSON3(raw)
	if err != nil {
		t.Fatalf("parseJSON3: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("len(segments) = %d, want 1", len(segments))
	}
	got := segments[0]
	if got.Text != "hello world" {
		t.Errorf("Text = %q, want %q", got.Text, "hello world")
	}
	if got.Start != 1 {
		t.Errorf("Start = %v, want 1 (seconds)", got.Start)
	}
	if got.Duration != 2 {
		t.Errorf("Duration = %v, want 2 (seconds)", got.Duration)
	}
}

func TestParseJSON3InvalidPayload(t *testing.T) {
	if _, err := parseJSON3([]byte("not json")); err == nil {
		t.Error("expected an error decoding malformed JSON")
	}
}

func TestParseJSON3EmptyEventsList(t *testing.T) {
	segments, err := parseJSON3([]byte(`{"events": []}`))
	if err != nil {
		t.Fatalf("parseJSON3: %v", err)
	}
	if len(segments) != 0 {
		t.Errorf("len(segments) = %d, want 0", len(segments))
	}
}
