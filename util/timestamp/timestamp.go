// Package timestamp provides the default clock capability myfatfs plugs
// into fatfs.FileSystem. The core itself never calls time.Now() directly;
// see fatfs.Clock. This package only supplies the default implementation a
// caller wires in when it doesn't want to provide its own.
package timestamp

import (
	"os"
	"strconv"
	"time"
)

// GetTime returns the current time in UTC, honoring SOURCE_DATE_EPOCH if set.
// SOURCE_DATE_EPOCH is a Unix timestamp used for reproducible builds.
// If SOURCE_DATE_EPOCH is not set or invalid, it returns time.Now().UTC().
func GetTime() time.Time {
	if epoch := os.Getenv("SOURCE_DATE_EPOCH"); epoch != "" {
		if ts, err := strconv.ParseInt(epoch, 10, 64); err == nil {
			return time.Unix(ts, 0).UTC()
		}
	}

	return time.Now().UTC()
}

// Now returns the current time as seconds since the Unix epoch, the wire
// format every on-disk created_time/modified_time field uses.
func Now() uint32 {
	return uint32(GetTime().Unix())
}
