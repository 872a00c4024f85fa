package health

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vyrodovalexey/tlsutil/internal/tls"
)

// SnapshotFunc returns the current status of every monitored certificate.
// ExpiryMonitor.Snapshot satisfies it.
type SnapshotFunc func() []tls.CertificateStatus

// CertificateCheck reports unhealthy when any certificate has expired or
// has never loaded, degraded when any is expiring and healthy otherwise.
// The message lists the offending certificate names.
func CertificateCheck(snapshot SnapshotFunc) CheckFunc {
	return func() Check {
		var expired, expiring, failed []string
		for _, status := range snapshot() {
			switch {
			case status.Info == nil:
				failed = append(failed, status.Name)
			case status.State == tls.ExpiryStateExpired:
				expired = append(expired, status.Name)
			case status.State == tls.ExpiryStateExpiring:
				expiring = append(expiring, status.Name)
			}
		}

		var parts []string
		if len(failed) > 0 {
			parts = append(parts, describe("not loaded", failed))
		}
		if len(expired) > 0 {
			parts = append(parts, describe("expired", expired))
		}
		if len(expiring) > 0 {
			parts = append(parts, describe("expiring", expiring))
		}

		check := Check{Status: StatusHealthy, Message: strings.Join(parts, "; ")}
		switch {
		case len(failed) > 0 || len(expired) > 0:
			check.Status = StatusUnhealthy
		case len(expiring) > 0:
			check.Status = StatusDegraded
		}
		return check
	}
}

func describe(label string, names []string) string {
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", label, strings.Join(names, ", "))
}
