//go:build linux

package smalloc

import "golang.org/x/sys/unix"

// mmapExtraFlags adds MAP_NORESERVE on Linux so the kernel doesn't account
// swap space against the whole ~64 TiB reservation up front — we only ever
// touch a tiny fraction of it.
func mmapExtraFlags() int {
	return unix.MAP_NORESERVE
}
