// Package kfmt provides formatted output routines for kernel subsystems.
// The implementation stays clear of the fmt machinery so it can run while
// the kernel is still bootstrapping its own memory managers, and it does
// not allocate once loaded.
package kfmt

import "io"

var (
	missingArg = []byte("(MISSING)")
	badVerb    = []byte("%!(NOVERB)")
	badType    = []byte("%!(BADTYPE)")
	boolTrue   = []byte("true")
	boolFalse  = []byte("false")

	// earlyBuf captures output emitted before an output sink is
	// registered.
	earlyBuf ringBuffer

	// sink is the destination for Printf output; while nil, output
	// accumulates in earlyBuf.
	sink io.Writer
)

// SetOutputSink registers w as the destination for Printf output and
// replays any early output captured so far into it.
func SetOutputSink(w io.Writer) {
	sink = w
	if w != nil {
		io.Copy(w, &earlyBuf)
	}
}

// Printf formats its arguments according to a subset of the fmt verbs and
// writes the result to the registered sink or, before a sink exists, to the
// early output buffer.
//
// Supported verbs:
//
//	%s string or byte slice
//	%c single byte
//	%t "true" or "false"
//	%d integers, base 10
//	%x integers, base 16 with lower-case digits
//
// An optional decimal width before the verb left-pads strings and base-10
// values with spaces and base-16 values with zeroes.
func Printf(format string, args ...interface{}) {
	if sink == nil {
		Fprintf(&earlyBuf, format, args...)
		return
	}
	Fprintf(sink, format, args...)
}

// Fprintf behaves like Printf but writes the formatted output to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		nextArg int
		fmtLen  = len(format)
	)

	for i := 0; i < fmtLen; {
		if format[i] != '%' {
			writeByte(w, format[i])
			i++
			continue
		}

		// Parse the optional width between '%' and the verb.
		i++
		width := 0
		for i < fmtLen && format[i] >= '0' && format[i] <= '9' {
			width = width*10 + int(format[i]-'0')
			i++
		}

		if i == fmtLen {
			w.Write(badVerb)
			return
		}

		verb := format[i]
		i++

		if verb == '%' {
			writeByte(w, '%')
			continue
		}

		if nextArg >= len(args) {
			w.Write(missingArg)
			continue
		}
		arg := args[nextArg]
		nextArg++

		switch verb {
		case 's':
			writePadded(w, arg, width)
		case 'c':
			writeChar(w, arg)
		case 't':
			writeBool(w, arg)
		case 'd':
			writeNum(w, arg, 10, width, ' ')
		case 'x':
			writeNum(w, arg, 16, width, '0')
		default:
			w.Write(badVerb)
		}
	}
}

// writeByte emits a single byte without allocating.
func writeByte(w io.Writer, b byte) {
	var buf [1]byte
	buf[0] = b
	w.Write(buf[:])
}

func writePadded(w io.Writer, arg interface{}, width int) {
	var (
		s  string
		bs []byte
	)

	switch v := arg.(type) {
	case string:
		s = v
	case []byte:
		bs = v
	default:
		w.Write(badType)
		return
	}

	valLen := len(s) + len(bs)
	for ; width > valLen; width-- {
		writeByte(w, ' ')
	}

	for i := 0; i < len(s); i++ {
		writeByte(w, s[i])
	}
	if bs != nil {
		w.Write(bs)
	}
}

func writeChar(w io.Writer, arg interface{}) {
	switch v := arg.(type) {
	case byte:
		writeByte(w, v)
	case rune:
		writeByte(w, byte(v))
	default:
		w.Write(badType)
	}
}

func writeBool(w io.Writer, arg interface{}) {
	v, isBool := arg.(bool)
	switch {
	case !isBool:
		w.Write(badType)
	case v:
		w.Write(boolTrue)
	default:
		w.Write(boolFalse)
	}
}

func writeNum(w io.Writer, arg interface{}, base, width int, pad byte) {
	v, negative, numeric := numValue(arg)
	if !numeric {
		w.Write(badType)
		return
	}

	const digits = "0123456789abcdef"

	// 64 bits in base 10 need at most 20 digits plus a sign.
	var buf [21]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = digits[v%uint64(base)]
		v /= uint64(base)
		if v == 0 {
			break
		}
	}
	if negative {
		pos--
		buf[pos] = '-'
	}

	for ; width > len(buf)-pos; width-- {
		writeByte(w, pad)
	}
	w.Write(buf[pos:])
}

// numValue reduces any built-in integer type to a magnitude and sign.
func numValue(arg interface{}) (val uint64, negative, numeric bool) {
	var sv int64

	switch v := arg.(type) {
	case uint8:
		return uint64(v), false, true
	case uint16:
		return uint64(v), false, true
	case uint32:
		return uint64(v), false, true
	case uint64:
		return v, false, true
	case uint:
		return uint64(v), false, true
	case uintptr:
		return uint64(v), false, true
	case int8:
		sv = int64(v)
	case int16:
		sv = int64(v)
	case int32:
		sv = int64(v)
	case int64:
		sv = v
	case int:
		sv = int64(v)
	default:
		return 0, false, false
	}

	if sv < 0 {
		return uint64(-sv), true, true
	}
	return uint64(sv), false, true
}
