package indexer

import (
	"strings"
	"testing"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress(" 0x00000000000000000000000000000000000000AA ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.ToLower(addr.Hex()) != "0x00000000000000000000000000000000000000aa" {
		t.Fatalf("unexpected address: %s", addr.Hex())
	}
	for _, bad := range []string{"", "0x1234", "not-an-address"} {
		if _, err := ParseAddress(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseTopic0(t *testing.T) {
	topics, err := ParseTopic0([]string{"", "0x11" + strings.Repeat("00", 31)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topics) != 1 || topics[0][0] != 0x11 {
		t.Fatalf("unexpected topics: %v", topics)
	}
	if _, err := ParseTopic0([]string{"0x1234"}); err == nil {
		t.Fatalf("expected length error")
	}
}
