// Package bundlerror defines the tagged error hierarchy behind spec §7's
// error handling design: every failure the pipeline can produce - a bad
// specifier, a package "exports" miss, a syntax error the scanner can't
// make sense of, a failed TypeScript/JSX transform, a resolution cycle, an
// unreadable file, an invalid option - carries one of logger's seven Kind
// values so a caller can dispatch on it without string-matching a message.
// internal/logger already defines the Kind taxonomy (it has to: Msg.Data
// carries one for every diagnostic); this package supplies the concrete,
// typed error values that construct and carry a Kind through normal Go
// error-handling paths (type assertions, errors.As) before they ever reach
// a Log, which is what internal/bundler's build policy and the dev
// server's abort-vs-terminate decision both key off.
package bundlerror

import (
	"strconv"

	"github.com/ruidosujeira/kona/internal/logger"
)

// Kind re-exports logger's taxonomy under this package's name so callers
// that only care about error classification don't need to import logger
// just for the enum.
type Kind = logger.Kind

const (
	KindResolutionNotFound  = logger.KindResolutionNotFound
	KindResolutionAmbiguous = logger.KindResolutionAmbiguous
	KindParseSyntaxError    = logger.KindParseSyntaxError
	KindTransformFailure    = logger.KindTransformFailure
	KindGraphCyclicPackage  = logger.KindGraphCyclicPackage
	KindIOUnreadable        = logger.KindIOUnreadable
	KindConfigInvalid       = logger.KindConfigInvalid
)

// Kinded is satisfied by every error type in this package, and by
// logger.Msg itself (see Classify below).
type Kinded interface {
	error
	Kind() Kind
}

// ResolutionNotFound is Resolution.NotFound: no file probe, no
// node_modules walk, and no plugin onResolve hook produced a match.
type ResolutionNotFound struct {
	Specifier string
	Importer  string
}

func (e *ResolutionNotFound) Error() string {
	if e.Importer == "" {
		return "could not resolve " + quote(e.Specifier)
	}
	return "could not resolve " + quote(e.Specifier) + " from " + quote(e.Importer)
}
func (e *ResolutionNotFound) Kind() Kind { return KindResolutionNotFound }

// ResolutionAmbiguous is Resolution.Ambiguous: a package "exports" map was
// present but no condition in it matched the requested subpath.
type ResolutionAmbiguous struct {
	Specifier   string
	PackageJSON string
}

func (e *ResolutionAmbiguous) Error() string {
	return quote(e.Specifier) + ": no \"exports\" condition in " + e.PackageJSON + " matched"
}
func (e *ResolutionAmbiguous) Kind() Kind { return KindResolutionAmbiguous }

// ParseSyntaxError is Parse.SyntaxError: the scanner hit a shape it
// couldn't make sense of (an unterminated string or template literal, most
// often - see internal/scan).
type ParseSyntaxError struct {
	Path string
	Pos  int
	Msg  string
}

func (e *ParseSyntaxError) Error() string {
	return e.Path + ": syntax error at byte " + strconv.Itoa(e.Pos) + ": " + e.Msg
}
func (e *ParseSyntaxError) Kind() Kind { return KindParseSyntaxError }

// TransformFailure is Transform.Failure: TypeScript erasure or JSX
// lowering could not produce valid output for this file.
type TransformFailure struct {
	Path  string
	Cause error
}

func (e *TransformFailure) Error() string {
	if e.Cause != nil {
		return e.Path + ": transform failed: " + e.Cause.Error()
	}
	return e.Path + ": transform failed"
}
func (e *TransformFailure) Kind() Kind { return KindTransformFailure }
func (e *TransformFailure) Unwrap() error { return e.Cause }

// GraphCyclicPackage is Graph.CyclicPackage: the node_modules upward walk
// revisited a directory it had already walked through, which only a
// symlink cycle can produce on
// a real filesystem.
type GraphCyclicPackage struct {
	Specifier string
	Dir       string
}

func (e *GraphCyclicPackage) Error() string {
	return quote(e.Specifier) + ": cyclic package reference detected back at " + e.Dir
}
func (e *GraphCyclicPackage) Kind() Kind { return KindGraphCyclicPackage }

// IOUnreadable is IO.Unreadable: the file exists in the graph's view (a
// resolution succeeded) but reading its contents failed - permissions,
// a broken symlink, a file removed between resolve and read.
type IOUnreadable struct {
	Path  string
	Cause error
}

func (e *IOUnreadable) Error() string {
	if e.Cause != nil {
		return e.Path + ": " + e.Cause.Error()
	}
	return e.Path + ": unreadable"
}
func (e *IOUnreadable) Kind() Kind { return KindIOUnreadable }
func (e *IOUnreadable) Unwrap() error { return e.Cause }

// ConfigInvalid is Config.Invalid: something about the Options the caller
// supplied can never produce a valid build. internal/bundler returns it for
// an empty EntryPoints list; an entry point that resolves external is
// logged by internal/graph under the same Kind. Format/Platform
// combinations are not checked.
type ConfigInvalid struct {
	Msg string
}

func (e *ConfigInvalid) Error() string { return "invalid config: " + e.Msg }
func (e *ConfigInvalid) Kind() Kind { return KindConfigInvalid }

// Classify recovers the Kind behind any error this package or
// internal/logger produces, defaulting to KindNone for anything else -
// used by internal/graph and internal/devserver to decide build policy
// without a type switch at every call site.
func Classify(err error) Kind {
	if err == nil {
		return logger.KindNone
	}
	if k, ok := err.(Kinded); ok {
		return k.Kind()
	}
	if msg, ok := err.(logger.Msg); ok {
		return msg.Data.ErrorKind
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return Classify(u.Unwrap())
	}
	return logger.KindNone
}

// TerminatesProcess reports whether a build error of this kind means the
// dev server can't meaningfully keep running at all (spec §9's state
// machine still has somewhere to go - back to Idle - for every other
// kind, since those are per-file and the previous good emission stays
// servable). Only a bad configuration, which can't produce a valid build
// no matter what changes on disk, warrants that.
func TerminatesProcess(kind Kind) bool {
	return kind == KindConfigInvalid
}

func quote(s string) string { return "\"" + s + "\"" }
