package guard

import (
	"bufio"
	"net"
	"net/http"
)

type (
	// interceptWriter holds back the status line until the handler picks
	// one. A 401 is swallowed together with its headers and body, anything
	// else is forwarded as is.
	interceptWriter struct {
		w         http.ResponseWriter
		base      http.Header
		header    http.Header
		committed bool
		dropped   bool
	}
)

func newInterceptWriter(w http.ResponseWriter) *interceptWriter {
	header := w.Header().Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &interceptWriter{w: w, base: header.Clone(), header: header}
}

func (iw *interceptWriter) Header() http.Header {
	return iw.header
}

func (iw *interceptWriter) WriteHeader(code int) {
	if iw.committed || iw.dropped {
		return
	}
	if informational(code) {
		// 1xx goes out right away, the final status is still pending and
		// the real header map goes back to what it was before the handler ran
		iw.copyHeader(iw.header)
		iw.w.WriteHeader(code)
		iw.copyHeader(iw.base)
		return
	}
	if code == http.StatusUnauthorized {
		iw.dropped = true
		return
	}
	iw.commit()
	iw.w.WriteHeader(code)
}

func (iw *interceptWriter) Write(buf []byte) (int, error) {
	if !iw.committed && !iw.dropped {
		iw.WriteHeader(http.StatusOK)
	}
	if iw.dropped {
		return len(buf), nil
	}
	return iw.w.Write(buf)
}

func (iw *interceptWriter) Flush() {
	if iw.dropped {
		return
	}
	if !iw.committed {
		iw.WriteHeader(http.StatusOK)
	}
	if f, ok := iw.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the connection over to the handler. The response can no
// longer be rewritten after that, so it counts as committed.
func (iw *interceptWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if iw.dropped {
		return nil, nil, errHijackAfterUnauthorized
	}
	if !iw.committed {
		iw.commit()
	}
	return http.NewResponseController(iw.w).Hijack()
}

func (iw *interceptWriter) Unwrap() http.ResponseWriter {
	return iw.w
}

// finish commits an implicit 200 for handlers that never wrote anything.
func (iw *interceptWriter) finish() {
	if !iw.committed && !iw.dropped {
		iw.WriteHeader(http.StatusOK)
	}
}

func (iw *interceptWriter) copyHeader(src http.Header) {
	dst := iw.w.Header()
	for k := range dst {
		delete(dst, k)
	}
	for k, v := range src {
		dst[k] = v
	}
}

func (iw *interceptWriter) commit() {
	iw.copyHeader(iw.header)
	// trailers and late headers go straight to the real response from now on
	iw.header = iw.w.Header()
	iw.committed = true
}

func informational(code int) bool {
	return code >= 100 && code < 200 && code != http.StatusSwitchingProtocols
}
