package launcher

import (
	"strings"
	"testing"
)

func TestRenderIncludesCoreDefines(t *testing.T) {
	out, err := Render(HeaderData{
		GeneratedAt: "2026-07-30T00:00:00Z",
		Entry:       0x401000,
		Params:      Parameters{Fizz: 3, FizzUp: 0x11, Buzz: 5, BuzzUp: 0x22},
		Payload:     []byte{0xDE, 0xAD, 0xBE, 0xEF},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for _, want := range []string{
		"#define PAYLOAD_ENTRY 0x401000",
		"#define PAYLOAD_SIZE 4",
		"#define FIZZ    0x03",
		"#define BUZZ_UP 0x22",
		"0xde, 0xad, 0xbe, 0xef",
		"PAYLOAD_BYTES_DEFINITION",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}
