package handshake

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"testing"
)

func TestAppendUpgrade(t *testing.T) {
	const exp = "HTTP/1.1 101 Switching Protocols\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n" +
		"Upgrade: websocket\r\n\r\n"

	act := AppendUpgrade(nil, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")
	if string(act) != exp {
		t.Errorf("AppendUpgrade() = %q; want %q", act, exp)
	}
	if n := UpgradeSize(); n != len(exp) {
		t.Errorf("UpgradeSize() = %d; want %d", n, len(exp))
	}

	prefix := []byte("prefix")
	act = AppendUpgrade(prefix, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")
	if !bytes.Equal(act, append([]byte("prefix"), exp...)) {
		t.Errorf("AppendUpgrade() did not append to dst: %q", act)
	}
}

func TestAppendError(t *testing.T) {
	for _, test := range []struct {
		label   string
		err     error
		code    int
		version string
	}{
		{
			label: "missing_key",
			err:   ErrMissingKey,
			code:  http.StatusBadRequest,
		},
		{
			label:   "bad_version",
			err:     ErrBadSecVersion,
			code:    http.StatusUpgradeRequired,
			version: "13",
		},
		{
			label: "method",
			err:   ErrBadHttpRequestMethod,
			code:  http.StatusMethodNotAllowed,
		},
		{
			label: "generic",
			err:   io.ErrUnexpectedEOF,
			code:  http.StatusBadRequest,
		},
	} {
		t.Run(test.label, func(t *testing.T) {
			p := AppendError(nil, test.err)
			res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(p)), nil)
			if err != nil {
				t.Fatalf("can not read response: %v", err)
			}
			defer res.Body.Close()

			if res.StatusCode != test.code {
				t.Errorf("status code is %d; want %d", res.StatusCode, test.code)
			}
			if v := res.Header.Get(headerSecVersion); v != test.version {
				t.Errorf("%q header is %q; want %q", headerSecVersion, v, test.version)
			}
			body, err := io.ReadAll(res.Body)
			if err != nil {
				t.Fatal(err)
			}
			if exp := test.err.Error() + "\n"; string(body) != exp {
				t.Errorf("body is %q; want %q", body, exp)
			}
		})
	}
}
