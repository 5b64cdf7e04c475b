// SPDX-License-Identifier: MPL-2.0

package rtcp

import "time"

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset int64 = 2208988800

// ntpTimestamp converts t to a 64-bit NTP timestamp (32-bit seconds,
// 32-bit fraction), adapted from the teacher's media.NTPTimestamp.
func ntpTimestamp(t time.Time) uint64 {
	seconds := t.Unix() + ntpEpochOffset
	frac := (float64(t.Nanosecond()) / 1e9) * (1 << 32)
	return (uint64(seconds) << 32) | uint64(frac)
}

// ntpToTime converts a 64-bit NTP timestamp back to a time.Time, adapted
// from the teacher's media.NTPToTime.
func ntpToTime(ntp uint64) time.Time {
	seconds := int64(ntp >> 32)
	frac := float64(ntp&0xFFFFFFFF) / (1 << 32)
	unixSeconds := seconds - ntpEpochOffset
	return time.Unix(unixSeconds, int64(frac*1e9))
}

// ntpMid returns the middle 32 bits of a 64-bit NTP timestamp — the
// "LSR"/"LastRR" compact form RFC 3550/3611 embed in RR and DLRR blocks.
func ntpMid(ntp uint64) uint32 {
	return uint32(ntp >> 16)
}

// ntpShortDuration converts an RFC 3550/3611 "delay since last
// report" field (32-bit fixed point, units of 1/65536 second — DLSR,
// DelaySinceLastRR) into a time.Duration.
func ntpShortDuration(v uint32) time.Duration {
	return time.Duration(v) * time.Second / (1 << 16)
}

// durationToNTPShort converts a time.Duration into the 1/65536-second
// fixed-point form used by DLSR/DelaySinceLastRR fields.
func durationToNTPShort(d time.Duration) uint32 {
	return uint32(d * (1 << 16) / time.Second)
}
