// Package sts composes and sends the signed AssumeRole request (spec.md
// §4.D), the one network collaborator the signing engine produces
// traffic for within this module's scope.
package sts

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/brightloop/mskiamauth/internal/apperrors"
	"github.com/brightloop/mskiamauth/internal/awsv4"
	"github.com/brightloop/mskiamauth/internal/logging"
	"github.com/brightloop/mskiamauth/internal/metrics"
)

// TLSMaterial is the client cert/key/CA bundle passed through from
// configuration (spec.md §6). Each field may be either a filesystem path
// or an inline PEM blob.
type TLSMaterial struct {
	ClientCert string
	ClientKey  string
	CABundle   string
}

// Client performs signed AssumeRole calls against STS.
type Client struct {
	httpClient *http.Client
	cfg        Config
	metrics    *metrics.Collector
	log        logging.Logger
}

// NewClient validates cfg and builds an HTTPS client using tlsMaterial
// when provided.
func NewClient(cfg Config, tlsMaterial TLSMaterial, mc *metrics.Collector) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}

	transport, err := buildTransport(tlsMaterial)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   15 * time.Second,
		},
		cfg:     cfg,
		metrics: mc,
		log:     logging.For("sts"),
	}, nil
}

func buildTransport(tlsMaterial TLSMaterial) (*http.Transport, error) {
	if tlsMaterial.ClientCert == "" && tlsMaterial.ClientKey == "" && tlsMaterial.CABundle == "" {
		return http.DefaultTransport.(*http.Transport).Clone(), nil
	}

	tlsConfig := &tls.Config{}

	if tlsMaterial.CABundle != "" {
		caPEM, err := loadPEM(tlsMaterial.CABundle)
		if err != nil {
			return nil, fmt.Errorf("ca_bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("ca_bundle: no certificates found")
		}
		tlsConfig.RootCAs = pool
	}

	if tlsMaterial.ClientCert != "" || tlsMaterial.ClientKey != "" {
		certPEM, err := loadPEM(tlsMaterial.ClientCert)
		if err != nil {
			return nil, fmt.Errorf("client_cert: %w", err)
		}
		keyPEM, err := loadPEM(tlsMaterial.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("client_key: %w", err)
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return transport, nil
}

// loadPEM treats value as an inline PEM blob if it decodes as one,
// otherwise as a filesystem path to read.
func loadPEM(value string) ([]byte, error) {
	if block, _ := pem.Decode([]byte(value)); block != nil {
		return []byte(value), nil
	}
	return os.ReadFile(value)
}

// AssumeRole signs and sends the AssumeRole request, returning the
// parsed credential tuple on success.
func (c *Client) AssumeRole(ctx context.Context) (*Result, error) {
	start := time.Now()
	ts := awsv4.NewTimestamp(start)

	signed := buildSignedRequest(c.cfg, ts)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://"+signed.host+"/", strings.NewReader(signed.body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", apperrors.ErrStsTransport, err)
	}
	for name, value := range signed.headers {
		req.Header.Set(name, value)
	}
	req.Host = signed.host

	if c.metrics != nil {
		c.metrics.RecordSign(stsService, time.Since(start))
	}

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordSTSCall(false, duration)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStsTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordSTSCall(false, duration)
		}
		return nil, fmt.Errorf("%w: reading response body: %v", apperrors.ErrStsTransport, err)
	}

	result, err := parseResponse(body)
	if c.metrics != nil {
		c.metrics.RecordSTSCall(err == nil, duration)
	}
	if err != nil {
		c.log.Warn("AssumeRole failed: %v", err)
		return nil, err
	}

	c.log.Info("AssumeRole succeeded, expires_at_unix_ms=%d", result.ExpiresAtUnixMs)
	return result, nil
}
