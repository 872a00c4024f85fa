package tracing

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc/credentials"

	tlsutil "github.com/vyrodovalexey/tlsutil/internal/tls"
)

// ErrUnknownCluster is returned when a tracer names a collector cluster the
// ClusterManager does not know.
var ErrUnknownCluster = errors.New("unknown cluster")

// Cluster is a named upstream the trace exporter can connect to.
type Cluster struct {
	Name    string      `yaml:"name"`
	Address string      `yaml:"address"`
	TLS     *ClusterTLS `yaml:"tls,omitempty"`
}

// ClusterTLS configures TLS towards a cluster. A nil ClusterTLS means plaintext.
type ClusterTLS struct {
	CAFile             string `yaml:"caFile,omitempty"`
	ServerName         string `yaml:"serverName,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify,omitempty"`
}

// TransportCredentials builds gRPC credentials for the cluster, or nil for
// a plaintext cluster.
func (c *Cluster) TransportCredentials() (credentials.TransportCredentials, error) {
	if c.TLS == nil {
		return nil, nil
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify, //nolint:gosec // opt-in for test collectors
	}

	if c.TLS.CAFile != "" {
		data, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("cluster %s: failed to read CA file: %w", c.Name, err)
		}
		certs, err := tlsutil.ParsePEMCertificates(data)
		if err != nil {
			return nil, fmt.Errorf("cluster %s: %w", c.Name, err)
		}
		pool := x509.NewCertPool()
		for _, cert := range certs {
			pool.AddCert(cert)
		}
		cfg.RootCAs = pool
	}

	return credentials.NewTLS(cfg), nil
}

// ClusterManager resolves cluster names.
type ClusterManager interface {
	Get(name string) (*Cluster, bool)
}

// StaticClusterManager is a ClusterManager over a fixed set of clusters.
type StaticClusterManager struct {
	clusters map[string]*Cluster
}

var _ ClusterManager = (*StaticClusterManager)(nil)

// NewStaticClusterManager indexes clusters by name. Duplicate names are rejected.
func NewStaticClusterManager(clusters ...Cluster) (*StaticClusterManager, error) {
	m := &StaticClusterManager{clusters: make(map[string]*Cluster, len(clusters))}
	for i := range clusters {
		cluster := clusters[i]
		if _, exists := m.clusters[cluster.Name]; exists {
			return nil, fmt.Errorf("duplicate cluster %q", cluster.Name)
		}
		m.clusters[cluster.Name] = &cluster
	}
	return m, nil
}

// Get returns the named cluster.
func (m *StaticClusterManager) Get(name string) (*Cluster, bool) {
	if m == nil {
		return nil, false
	}
	cluster, ok := m.clusters[name]
	return cluster, ok
}
