// Package metrics exposes Prometheus instrumentation for the gateway:
// session lifecycle, authentication outcomes, and transfer volume.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records gateway events into a dedicated Prometheus
// registry. It satisfies the transfer layer's event tracker interface,
// so it can be plugged into the server next to the logging tracker.
type Collector struct {
	registry *prometheus.Registry

	sessionsActive    prometheus.Gauge
	sessionsTotal     prometheus.Counter
	authAttemptsTotal *prometheus.CounterVec
	operationsTotal   *prometheus.CounterVec
	transferredBytes  *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	return &Collector{
		registry: reg,
		sessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "sftpgate_sessions_active",
			Help: "Number of currently open SFTP sessions",
		}),
		sessionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sftpgate_sessions_total",
			Help: "Total number of SFTP sessions accepted",
		}),
		authAttemptsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sftpgate_auth_attempts_total",
				Help: "Authentication attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sftpgate_operations_total",
				Help: "File operations by type and outcome",
			},
			[]string{"operation", "outcome"},
		),
		transferredBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sftpgate_transferred_bytes_total",
				Help: "Bytes transferred by direction",
			},
			[]string{"direction"},
		),
	}
}

// Registry returns the collector's registry for serving.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) SessionOpened(username, remoteAddr string) {
	c.sessionsTotal.Inc()
	c.sessionsActive.Inc()
}

func (c *Collector) SessionClosed(username, remoteAddr string) {
	c.sessionsActive.Dec()
}

func (c *Collector) AuthAttempt(username, method string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.authAttemptsTotal.WithLabelValues(method, outcome).Inc()
}

func (c *Collector) FileOpened(username, path string) {
	c.operationsTotal.WithLabelValues("open", "success").Inc()
}

func (c *Collector) FileClosed(username, path string, bytesRead, bytesWritten int64) {
	c.operationsTotal.WithLabelValues("close", "success").Inc()
	if bytesRead > 0 {
		c.transferredBytes.WithLabelValues("download").Add(float64(bytesRead))
	}
	if bytesWritten > 0 {
		c.transferredBytes.WithLabelValues("upload").Add(float64(bytesWritten))
	}
}

func (c *Collector) PathRemoved(username, path string) {
	c.operationsTotal.WithLabelValues("remove", "success").Inc()
}

func (c *Collector) PathRenamed(username, oldPath, newPath string) {
	c.operationsTotal.WithLabelValues("rename", "success").Inc()
}

func (c *Collector) DirCreated(username, path string) {
	c.operationsTotal.WithLabelValues("mkdir", "success").Inc()
}

func (c *Collector) OperationFailed(username, op, path string, err error) {
	c.operationsTotal.WithLabelValues(op, "failure").Inc()
}
