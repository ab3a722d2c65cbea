//go:build !solution

package rwlock

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// goroutineID returns the runtime id of the calling goroutine.
// Ids start at 1, so 0 is used as "no owner".
func goroutineID() int64 {
	var buf [64]byte
	// Первая строка стека выглядит так: "goroutine 42 [running]:"
	s := buf[:runtime.Stack(buf[:], false)]
	s = bytes.TrimPrefix(s, goroutinePrefix)
	if i := bytes.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	id, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("rwlock: cannot parse goroutine id: %v", err))
	}
	return id
}
