// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Command trackerd runs the tracker with the drivers built into this
// module. Anyone wanting additional persistence drivers can vendor this
// package, blank-import their own driver, and call chihaya.Boot directly.
package main

import (
	chihaya "github.com/majestrate/bittorrent-tracker"
)

func main() {
	chihaya.Boot()
}
