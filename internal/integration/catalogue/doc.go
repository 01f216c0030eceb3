// Package catalogue describes the security tools the launcher knows about.
//
// A Tool names one external program together with the binaries it needs on
// PATH and whether it must run elevated. The argument semantics of each
// tool stay opaque: the user supplies them, optionally after a fixed set of
// default arguments.
//
// Built-in tools are returned by Builtin. Additional or overriding tools
// can be loaded from a TOML or YAML file:
//
//	# tools.toml
//	[[tools]]
//	name = "nmap"
//	program = "nmap"
//	description = "Network scanner"
//	dependencies = ["nmap"]
//
// Watch reloads such a file whenever it changes.
package catalogue
