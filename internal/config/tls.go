package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// ServerTLS builds the listener TLS config from TLS_CERT_FILE/TLS_KEY_FILE.
// Returns nil, nil when no certificate is configured (plaintext behind a
// terminating proxy).
func (c *Config) ServerTLS() (*tls.Config, error) {
	if c.TLSCertFile == "" && c.TLSKeyFile == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server cert: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// RedisTLS builds the client TLS config for the session store.
// Returns nil, nil if neither a CA nor a client cert is configured.
func (c *Config) RedisTLS() (*tls.Config, error) {
	if c.RedisTLSCACert == "" && c.RedisTLSCert == "" && c.RedisTLSKey == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if c.RedisTLSCert != "" || c.RedisTLSKey != "" {
		cert, err := tls.LoadX509KeyPair(c.RedisTLSCert, c.RedisTLSKey)
		if err != nil {
			return nil, fmt.Errorf("load redis client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if c.RedisTLSCACert != "" {
		caPEM, err := os.ReadFile(c.RedisTLSCACert)
		if err != nil {
			return nil, fmt.Errorf("read redis CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse redis CA cert")
		}
		tlsConfig.RootCAs = pool
	}

	if c.RedisTLSServerName != "" {
		tlsConfig.ServerName = c.RedisTLSServerName
	}

	return tlsConfig, nil
}
