// Package app wires the cryptographic core's collaborators (stores, the
// directory client, and per-session coordinators) into the operations the
// CLI calls: create an identity, publish it, establish a session, send,
// and receive.
package app

import (
	"net"
	"net/http"
	"time"
)

// Config holds runtime wiring options for building a Manager.
type Config struct {
	Home       string       // config directory, e.g. $HOME/.ciphera
	RelayURL   string       // directory/mailbox base URL, e.g. http://127.0.0.1:8080
	HTTPClient *http.Client // optional; a tuned default is used if nil
}

// defaultHTTPClient is the tuned client NewManager uses when
// Config.HTTPClient is nil, which is how both the CLI and the tests build
// a Manager.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
		},
	}
}
