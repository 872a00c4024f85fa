// Package health provides liveness and readiness probe endpoints.
//
// A Checker aggregates named checks into a single readiness status:
// any unhealthy check makes the whole response unhealthy, otherwise any
// degraded check makes it degraded. CertificateCheck turns the certificate
// monitor's snapshot into such a check, so a probe fails once a monitored
// certificate has expired and reports degraded while one is expiring.
package health
