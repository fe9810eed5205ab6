package s3

import "testing"

func TestParseRef(t *testing.T) {
	bucket, key, err := parseRef(objectRef("proofs", "/payment-proofs/b-1/x.pdf"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != "proofs" || key != "payment-proofs/b-1/x.pdf" {
		t.Fatalf("unexpected split %q %q", bucket, key)
	}
	for _, bad := range []string{"https://x/y", "s3://bucket-only", "s3:///key"} {
		if _, _, err := parseRef(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestHostOfStripsScheme(t *testing.T) {
	if got := hostOf("http://localhost:9000"); got != "localhost:9000" {
		t.Fatalf("expected host, got %q", got)
	}
	if got := hostOf("minio:9000"); got != "minio:9000" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
