package lttvfilter

import "github.com/giraldeau/lttv"

// FieldKind enumerates the closed set of field_path accessors spec.md §4.7
// allows.
type FieldKind int

const (
	FieldTraceName FieldKind = iota
	FieldTracefileName
	FieldProcessPID
	FieldProcessPPID
	FieldProcessTGID
	FieldProcessName
	FieldProcessBrand
	FieldProcessStatus
	FieldProcessMode
	FieldProcessSubmode
	FieldProcessCPU
	FieldEventName
	FieldEventSubname
	FieldEventTime
	FieldEventTSC
	FieldEventTargetPID
	FieldEventField // event.<field_of_marker>; MarkerField names the field
)

// FieldPath selects one value out of the evaluation context.
type FieldPath struct {
	Kind        FieldKind
	MarkerField string
}

// EvalContext is everything a compiled filter tree can read from, mirroring
// the context-tree levels the engine threads through a pass (spec.md §3).
type EvalContext struct {
	TraceName     string
	TracefileName string
	Process       *lttv.Process
	Event         *lttv.Event
	LittleEndian  bool
}

type accessor func(ctx *EvalContext) (Literal, bool)

// resolve returns the accessor function for p, computed once at compile
// time so evaluation never re-dispatches on Kind.
func (p FieldPath) resolve() accessor {
	switch p.Kind {
	case FieldTraceName:
		return func(c *EvalContext) (Literal, bool) { return strLit(c.TraceName), true }
	case FieldTracefileName:
		return func(c *EvalContext) (Literal, bool) { return strLit(c.TracefileName), true }
	case FieldProcessPID:
		return func(c *EvalContext) (Literal, bool) {
			if c.Process == nil {
				return Literal{}, false
			}
			return intLit(c.Process.PID), true
		}
	case FieldProcessPPID:
		return func(c *EvalContext) (Literal, bool) {
			if c.Process == nil {
				return Literal{}, false
			}
			return intLit(c.Process.PPID), true
		}
	case FieldProcessTGID:
		return func(c *EvalContext) (Literal, bool) {
			if c.Process == nil {
				return Literal{}, false
			}
			return intLit(c.Process.TGID), true
		}
	case FieldProcessName:
		return func(c *EvalContext) (Literal, bool) {
			if c.Process == nil {
				return Literal{}, false
			}
			return strLit(c.Process.Name), true
		}
	case FieldProcessBrand:
		return func(c *EvalContext) (Literal, bool) {
			if c.Process == nil {
				return Literal{}, false
			}
			return strLit(c.Process.Brand), true
		}
	case FieldProcessStatus:
		return func(c *EvalContext) (Literal, bool) {
			if c.Process == nil {
				return Literal{}, false
			}
			return strLit(c.Process.Top().Status.String()), true
		}
	case FieldProcessMode:
		return func(c *EvalContext) (Literal, bool) {
			if c.Process == nil {
				return Literal{}, false
			}
			return strLit(c.Process.Top().Mode.String()), true
		}
	case FieldProcessSubmode:
		return func(c *EvalContext) (Literal, bool) {
			if c.Process == nil {
				return Literal{}, false
			}
			return strLit(c.Process.Top().Submode), true
		}
	case FieldProcessCPU:
		return func(c *EvalContext) (Literal, bool) {
			if c.Process == nil {
				return Literal{}, false
			}
			return intLit(int64(c.Process.CPU)), true
		}
	case FieldEventName:
		return func(c *EvalContext) (Literal, bool) {
			if c.Event == nil || c.Event.Marker == nil {
				return Literal{}, false
			}
			return strLit(c.Event.Marker.Name), true
		}
	case FieldEventTime, FieldEventTSC:
		return func(c *EvalContext) (Literal, bool) {
			if c.Event == nil {
				return Literal{}, false
			}
			return intLit(int64(c.Event.Timestamp)), true
		}
	case FieldEventTargetPID:
		return func(c *EvalContext) (Literal, bool) {
			if c.Event == nil {
				return Literal{}, false
			}
			v, ok := c.Event.FieldInt("target_pid", c.LittleEndian)
			return intLit(v), ok
		}
	case FieldEventField:
		name := p.MarkerField
		return func(c *EvalContext) (Literal, bool) {
			if c.Event == nil {
				return Literal{}, false
			}
			v, ok := c.Event.FieldInt(name, c.LittleEndian)
			if ok {
				return intLit(v), true
			}
			s, ok := c.Event.FieldString(name, c.Event.PayloadOffset)
			return strLit(s), ok
		}
	default:
		return func(c *EvalContext) (Literal, bool) { return Literal{}, false }
	}
}

func strLit(s string) Literal  { return Literal{Kind: LiteralString, String: s} }
func intLit(v int64) Literal   { return Literal{Kind: LiteralInt, Integer: v} }
