// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jcodagnone/housefinder/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
