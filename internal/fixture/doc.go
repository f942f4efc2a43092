// Package fixture loads YAML resolver fixtures and expands them into cases.
//
// # Fixture Format
//
// Fixtures live one directory below a root, one file per scenario:
//
//	<root>/<group>/<scenario>.yml
//
// Each file holds an optional base mapping whose fields every case inherits,
// and an ordered list of cases:
//
//	base:
//	  available:
//	    - A 1.0.0; depends B == 1.0.0
//	    - B 1.0.0
//	cases:
//	  - request:
//	      - install: A
//	    transaction:
//	      - install:
//	          - A 1.0.0
//	          - B 1.0.0
//	  - request:
//	      - install: B == 2.0.0
//	    transaction:
//	      - {}
//	    skip: true
//
// Available packages use the compact form "name version; depends a, b" or
// the equivalent mapping with name, version, depends and extras keys.
//
// Expected outcomes are one of:
//
//   - install: the sorted "name version" list of distributions created
//   - conflicting: required_by / selector pairs parsed from the installer's
//     conflict message
//   - {}: the installer failed without reporting a conflict
//
// # Case Names
//
// A case is named after its file path relative to the root without the
// extension, with "-<index>" appended when the file defines several cases.
// Cases with skip: true are kept and reported as expected failures.
package fixture
