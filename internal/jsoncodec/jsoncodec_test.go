package jsoncodec

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags,omitempty"`
	Count int      `json:"count"`
}

func TestMarshalUnmarshal(t *testing.T) {
	in := sample{Name: "reservation", Tags: []string{"a", "b"}, Count: 2}

	raw, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out sample
	if err := Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count || len(out.Tags) != 2 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestUnmarshalRejectsMalformedInput(t *testing.T) {
	var out sample
	if err := Unmarshal([]byte("{not json"), &out); err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestEncodeDecodeStream(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sample{Name: "stream"}); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var out sample
	if err := Decode(strings.NewReader(buf.String()), &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Name != "stream" {
		t.Fatalf("expected stream, got %q", out.Name)
	}
}
