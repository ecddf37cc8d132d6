// Package memory implements the store contracts with process-local maps.
// State is volatile: the whole system is single-process and resets on
// restart. Each store serializes check-then-act sequences behind a
// single mutex and hands out deep copies, so callers never observe a
// partially applied write.
package memory

import "time"

// timestamp formats the current UTC time with millisecond precision,
// matching the wire format of createdAt/updatedAt fields.
func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
