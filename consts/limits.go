package consts

import "time"

// Resource-limit defaults for the Sieve engine (component M). These
// mirror the defaults Dovecot/Pigeonhole ships and RFC 5229's floor.
const (
	DefaultMaxVariableSize = 4 * 1024 // bytes, RFC 5229 floor is 4000
	MinVariableSize        = 4000

	DefaultMaxScopeSize = 255 // identifiers
	MinScopeSize        = 128

	DefaultMaxMatchValues = 9

	DefaultMaxNestingDepth = 10
	DefaultMaxIncludes     = 30

	DefaultMaxScriptSize = 1024 * 1024 // 1 MiB
	DefaultMaxLineLength = 8192        // ManageSieve max line size, bytes

	DefaultMaxErrors = 30 // compile errors accumulated before abort

	DefaultCPUTimeLimit = 30 * time.Second
	DefaultMemoryLimit  = 32 * 1024 * 1024 // bytes
)

// ManageSieve connection limits.
const (
	ClientMaxBadCommands = 20
	DefaultSievePort     = 4190
)
