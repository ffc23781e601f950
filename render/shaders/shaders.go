package shaders

import (
	_ "embed"
)

//go:embed instances.wgsl
var InstancesWGSL string
