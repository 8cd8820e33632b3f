// Package logger collects structured build diagnostics. It is deliberately
// separate from the CLI's progress rendering (see cmd/kona): this package
// owns the taxonomy of Resolution/Parse/Transform/IO errors described by the
// bundler's error handling design, not terminal output.
package logger

import (
	"fmt"
	"sort"
	"sync"
)

// Loc is a byte offset into a Source's Contents.
type Loc struct {
	Start int32
}

// Range is a span starting at Loc and covering Len bytes.
type Range struct {
	Loc Loc
	Len int32
}

func (r Range) End() int32 {
	return r.Loc.Start + r.Len
}

// Source is the text of a single module plus the path it was read from.
type Source struct {
	AbsPath    string
	PrettyPath string
	Contents   string

	// Index into the owning Graph's module arena, filled in once the module
	// has been assigned an id. Zero until then.
	ModuleID uint32
}

func (s *Source) TextForRange(r Range) string {
	return s.Contents[r.Loc.Start : r.Loc.Start+r.Len]
}

// MsgKind classifies a diagnostic the way clang's error format does, which is
// the convention this bundler's diagnostics follow throughout.
type MsgKind uint8

const (
	Error MsgKind = iota
	Warning
	Note
)

func (kind MsgKind) String() string {
	switch kind {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Kind is the taxonomy from the error handling design (spec §7): every public
// error surfaced by a pipeline component carries one of these so callers -
// including the dev-server state machine - can dispatch on it without string
// matching.
type Kind uint8

const (
	KindNone Kind = iota
	KindResolutionNotFound
	KindResolutionAmbiguous
	KindParseSyntaxError
	KindTransformFailure
	KindGraphCyclicPackage
	KindIOUnreadable
	KindConfigInvalid
)

func (k Kind) String() string {
	switch k {
	case KindResolutionNotFound:
		return "Resolution.NotFound"
	case KindResolutionAmbiguous:
		return "Resolution.Ambiguous"
	case KindParseSyntaxError:
		return "Parse.SyntaxError"
	case KindTransformFailure:
		return "Transform.Failure"
	case KindGraphCyclicPackage:
		return "Graph.CyclicPackage"
	case KindIOUnreadable:
		return "IO.Unreadable"
	case KindConfigInvalid:
		return "Config.Invalid"
	default:
		return "none"
	}
}

type MsgLocation struct {
	File     string
	Line     int // 1-based
	Column   int // 0-based, in bytes
	Length   int
	LineText string
}

type MsgData struct {
	Text       string
	Location   *MsgLocation
	ErrorKind  Kind
	UserDetail interface{}
}

type Msg struct {
	Kind  MsgKind
	Data  MsgData
	Notes []MsgData
}

// Error implements the error interface so Msg can flow through normal Go
// error-handling paths (e.g. returned from Resolver.Resolve) as well as
// through the Log aggregator.
func (m Msg) Error() string {
	if m.Data.Location != nil {
		return fmt.Sprintf("%s: %s: %s", m.Data.Location.File, m.Kind, m.Data.Text)
	}
	return fmt.Sprintf("%s: %s", m.Kind, m.Data.Text)
}

type sortableMsgs []Msg

func (a sortableMsgs) Len() int      { return len(a) }
func (a sortableMsgs) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a sortableMsgs) Less(i, j int) bool {
	ai, aj := a[i].Data.Location, a[j].Data.Location
	if ai == nil || aj == nil {
		return ai == nil && aj != nil
	}
	if ai.File != aj.File {
		return ai.File < aj.File
	}
	if ai.Line != aj.Line {
		return ai.Line < aj.Line
	}
	return ai.Column < aj.Column
}

// Log is the diagnostic sink threaded through every pipeline component.
// Construction is via NewDeferLog, which buffers messages behind a mutex so
// parallel transform workers (internal/graph) can all report into the same
// Log concurrently; Done() drains them in a deterministic, sorted order.
type Log struct {
	AddMsg    func(Msg)
	HasErrors func() bool
	Done      func() []Msg
}

func NewDeferLog() Log {
	var msgs sortableMsgs
	var mutex sync.Mutex
	var hasErrors bool

	return Log{
		AddMsg: func(msg Msg) {
			mutex.Lock()
			defer mutex.Unlock()
			if msg.Kind == Error {
				hasErrors = true
			}
			msgs = append(msgs, msg)
		},
		HasErrors: func() bool {
			mutex.Lock()
			defer mutex.Unlock()
			return hasErrors
		},
		Done: func() []Msg {
			mutex.Lock()
			defer mutex.Unlock()
			sort.Stable(msgs)
			out := make([]Msg, len(msgs))
			copy(out, msgs)
			return out
		},
	}
}

func RangeData(source *Source, r Range, text string) MsgData {
	return MsgData{Text: text, Location: LocationOrNil(source, r)}
}

func LocationOrNil(source *Source, r Range) *MsgLocation {
	if source == nil {
		return nil
	}
	line, column, lineStart, lineEnd := computeLineAndColumn(source.Contents, int(r.Loc.Start))
	return &MsgLocation{
		File:     source.PrettyPath,
		Line:     line,
		Column:   column,
		Length:   int(r.Len),
		LineText: source.Contents[lineStart:lineEnd],
	}
}

// computeLineAndColumn walks contents up to offset counting newlines. A
// linear scan is fine here: diagnostics are rare enough that an index is not
// worth building ahead of time.
func computeLineAndColumn(contents string, offset int) (line int, column int, lineStart int, lineEnd int) {
	line = 1
	if offset > len(contents) {
		offset = len(contents)
	}
	for i := 0; i < offset; i++ {
		if contents[i] == '\n' {
			line++
			lineStart = i + 1
			column = 0
		} else {
			column++
		}
	}
	lineEnd = len(contents)
	for i := lineStart; i < len(contents); i++ {
		if contents[i] == '\n' {
			lineEnd = i
			break
		}
	}
	return
}

func (log Log) AddError(source *Source, loc Loc, text string) {
	log.AddMsg(Msg{Kind: Error, Data: RangeData(source, Range{Loc: loc}, text)})
}

func (log Log) AddErrorWithKind(source *Source, r Range, kind Kind, text string) {
	data := RangeData(source, r, text)
	data.ErrorKind = kind
	log.AddMsg(Msg{Kind: Error, Data: data})
}

func (log Log) AddRangeWarning(source *Source, r Range, text string) {
	log.AddMsg(Msg{Kind: Warning, Data: RangeData(source, r, text)})
}

func (log Log) AddErrorWithNotes(source *Source, loc Loc, text string, notes []MsgData) {
	log.AddMsg(Msg{Kind: Error, Data: RangeData(source, Range{Loc: loc}, text), Notes: notes})
}

// MsgsToError aggregates a Log's error messages into a single Go error, or
// nil if there were none. One-shot production builds use this to decide
// whether to fail without partial output (spec §7).
func MsgsToError(msgs []Msg) error {
	var firstErr error
	count := 0
	for _, m := range msgs {
		if m.Kind == Error {
			count++
			if firstErr == nil {
				firstErr = m
			}
		}
	}
	if firstErr == nil {
		return nil
	}
	if count == 1 {
		return firstErr
	}
	return fmt.Errorf("%w (and %d more error(s))", firstErr, count-1)
}
