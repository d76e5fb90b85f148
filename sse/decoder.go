// Package sse implements an incremental server-sent-events frame decoder.
// Bytes arrive in chunks of arbitrary sizes; the decoder buffers until a
// blank-line terminator completes a frame. Decoding is associative over
// chunk boundaries: any partition of the input yields the same events.
package sse

import "bytes"

// Event is one decoded SSE frame.
type Event struct {
	Data  []byte
	Event string
	ID    string
	Retry string
}

// Decoder reassembles SSE frames from a chunked byte stream.
type Decoder struct {
	buf []byte
}

func NewDecoder() *Decoder { return &Decoder{} }

// Push appends a chunk and returns all frames completed by it. Frames
// without any data line are dropped.
func (d *Decoder) Push(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)
	var events []Event
	for {
		frameEnd, next, ok := findFrameEnd(d.buf)
		if !ok {
			return events
		}
		frame := d.buf[:frameEnd]
		d.buf = d.buf[next:]
		if ev, ok := parseFrame(frame); ok {
			events = append(events, ev)
		}
	}
}

// Finish flushes a trailing unterminated frame as if a blank line followed
// it. Several providers close the connection right after the last data line.
func (d *Decoder) Finish() []Event {
	if len(d.buf) == 0 {
		return nil
	}
	return d.Push([]byte("\n\n"))
}

// findFrameEnd locates the first blank line terminating a frame. It returns
// the frame length, the offset of the byte after the terminator, and whether
// a complete frame is buffered. A trailing CR is ambiguous (it may be half
// of CRLF), so it forces waiting for more bytes.
func findFrameEnd(buf []byte) (frameEnd, next int, ok bool) {
	i := 0
	for i < len(buf) {
		// i is at the start of a line.
		switch buf[i] {
		case '\n':
			return i, i + 1, true
		case '\r':
			if i+1 >= len(buf) {
				return 0, 0, false
			}
			if buf[i+1] == '\n' {
				return i, i + 2, true
			}
			return i, i + 1, true
		}
		// Advance past this non-empty line.
		for i < len(buf) {
			c := buf[i]
			if c == '\n' {
				i++
				break
			}
			if c == '\r' {
				if i+1 >= len(buf) {
					return 0, 0, false
				}
				if buf[i+1] == '\n' {
					i += 2
				} else {
					i++
				}
				break
			}
			i++
		}
	}
	return 0, 0, false
}

// parseFrame splits a frame into lines and collects its fields. Comment
// lines start with ':'. A line without a colon is a field name with an
// empty value. Multiple data lines join with '\n'.
func parseFrame(frame []byte) (Event, bool) {
	var ev Event
	var dataLines [][]byte
	hasData := false

	for _, line := range splitLines(frame) {
		if len(line) == 0 {
			continue
		}
		if line[0] == ':' {
			continue
		}
		var name, value []byte
		if idx := bytes.IndexByte(line, ':'); idx >= 0 {
			name = line[:idx]
			value = line[idx+1:]
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
		} else {
			name = line
		}
		switch string(name) {
		case "data":
			hasData = true
			dataLines = append(dataLines, value)
		case "event":
			ev.Event = string(value)
		case "id":
			ev.ID = string(value)
		case "retry":
			ev.Retry = string(value)
		}
	}

	if !hasData {
		return Event{}, false
	}
	ev.Data = bytes.Join(dataLines, []byte("\n"))
	return ev, true
}

func splitLines(frame []byte) [][]byte {
	var lines [][]byte
	start := 0
	i := 0
	for i < len(frame) {
		switch frame[i] {
		case '\n':
			lines = append(lines, frame[start:i])
			i++
			start = i
		case '\r':
			lines = append(lines, frame[start:i])
			if i+1 < len(frame) && frame[i+1] == '\n' {
				i += 2
			} else {
				i++
			}
			start = i
		default:
			i++
		}
	}
	if start < len(frame) {
		lines = append(lines, frame[start:])
	}
	return lines
}
