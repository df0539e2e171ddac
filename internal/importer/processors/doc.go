// Package processors registers all row-processing strategies with the
// importer registry. Import this package to ensure all import types are
// registered.
//
// Each strategy file uses init() to register its processor.
package processors
