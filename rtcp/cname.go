// SPDX-License-Identifier: MPL-2.0

package rtcp

import "github.com/google/uuid"

// GenerateCNAME returns a fresh RFC 3550 CNAME suitable for a Reporter
// that wasn't given one explicitly. RFC 3550 only requires a CNAME to be
// unique per source and stable for the session's lifetime; a random UUID
// satisfies both without needing a reverse-DNS-able hostname, grounded on
// the teacher's own use of uuid.New().String() for unique per-session
// identifiers (audio/monitor_pcm.go).
func GenerateCNAME() string {
	return uuid.New().String()
}
