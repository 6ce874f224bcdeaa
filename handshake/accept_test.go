package handshake

import (
	"errors"
	"testing"
)

func TestAccept(t *testing.T) {
	for _, test := range []struct {
		label string
		key   string
		exp   string
		err   error
	}{
		{
			label: "rfc6455",
			key:   "dGhlIHNhbXBsZSBub25jZQ==",
			exp:   "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=",
		},
		{
			label: "empty",
			key:   "",
			err:   ErrMissingKey,
		},
	} {
		t.Run(test.label, func(t *testing.T) {
			act, err := Accept(test.key)
			if err != test.err {
				t.Fatalf("Accept(%q) error is %v; want %v", test.key, err, test.err)
			}
			if act != test.exp {
				t.Errorf("Accept(%q) = %q; want %q", test.key, act, test.exp)
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	for _, test := range []struct {
		label  string
		header *Header
		exp    string
		err    error
	}{
		{
			label:  "base",
			header: upgradeHeader,
			exp:    "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=",
		},
		{
			label:  "lowercase",
			header: headerOf("sec-websocket-key", "dGhlIHNhbXBsZSBub25jZQ=="),
			exp:    "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=",
		},
		{
			label:  "no_key",
			header: headerOf("Host", "x", "Sec-WebSocket-Version", "13"),
			err:    ErrMissingKey,
		},
		{
			label:  "empty_key",
			header: headerOf("Sec-WebSocket-Key", ""),
			err:    ErrMissingKey,
		},
		{
			label: "bad_version",
			header: headerOf(
				"Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==",
				"Sec-WebSocket-Version", "8",
			),
			err: ErrBadSecVersion,
		},
	} {
		t.Run(test.label, func(t *testing.T) {
			act, err := Prepare(test.header)
			if !errors.Is(err, test.err) {
				t.Fatalf("Prepare() error is %v; want %v", err, test.err)
			}
			if act != test.exp {
				t.Errorf("Prepare() = %q; want %q", act, test.exp)
			}
		})
	}
}

func TestAcceptDigestReuse(t *testing.T) {
	// Digests are pooled: every call must start from a clean state.
	for i := 0; i < 3; i++ {
		for _, test := range []struct {
			key string
			exp string
		}{
			{"dGhlIHNhbXBsZSBub25jZQ==", "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="},
			{"x3JJHMbDL1EzLkh9GBhXDw==", "HSmrc0sMlYUkAGmm5OPpG2HaGWk="},
		} {
			act, err := Accept(test.key)
			if err != nil {
				t.Fatal(err)
			}
			if act != test.exp {
				t.Errorf("#%d Accept(%q) = %q; want %q", i, test.key, act, test.exp)
			}
		}
	}
}

func TestPutAcceptBadBuffer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("PutAccept() with short buffer did not panic")
		}
	}()
	PutAccept(make([]byte, 10), []byte("dGhlIHNhbXBsZSBub25jZQ=="))
}

func BenchmarkPutAccept(b *testing.B) {
	dst := make([]byte, acceptSize)
	key := []byte("dGhlIHNhbXBsZSBub25jZQ==")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		PutAccept(dst, key)
	}
}
