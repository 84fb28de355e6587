package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

// TLSOptions holds TLS configuration that can be unmarshaled from JSON/YAML.
type TLSOptions struct {
	InsecureSkipVerify bool   `json:"insecureSkipVerify" yaml:"insecureSkipVerify"`
	ServerName         string `json:"serverName,omitempty" yaml:"serverName,omitempty"`
	CAFile             string `json:"caFile,omitempty" yaml:"caFile,omitempty"`
	CertFile           string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile            string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
}

// Options configures the broker connection. Transport selects the URL scheme:
// tcp (default), ssl, ws or wss.
type Options struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	Username       string        `json:"username,omitempty"`
	Password       string        `json:"password,omitempty"`
	ClientID       string        `json:"clientID,omitempty"`
	Transport      string        `json:"transport,omitempty"`
	TLS            *TLSOptions   `json:"tls,omitempty"`
	KeepAlive      time.Duration `json:"keepAlive,omitempty"`
	ConnectTimeout time.Duration `json:"connectTimeout,omitempty"`
}

// BrokerURL renders the paho broker URL for these options.
func (o *Options) BrokerURL() string {
	transport := o.Transport
	if transport == "" {
		transport = "tcp"
	}
	port := o.Port
	if port == 0 {
		port = 1883
	}
	return fmt.Sprintf("%s://%s:%d", transport, o.Host, port)
}

func createTLSConfig(tlsOpts *TLSOptions) (*tls.Config, error) {
	if tlsOpts == nil {
		return nil, nil
	}

	config := &tls.Config{
		InsecureSkipVerify: tlsOpts.InsecureSkipVerify,
		ServerName:         tlsOpts.ServerName,
	}

	if tlsOpts.CAFile != "" {
		caCert, err := os.ReadFile(tlsOpts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = caCertPool
	}

	if tlsOpts.CertFile != "" && tlsOpts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsOpts.CertFile, tlsOpts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}
